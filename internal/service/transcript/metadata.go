package transcript

import "acta-transcript-engine/internal/models"

// recordConfidence adds a final-fragment confidence sample. Zero (unknown)
// and negative values never contribute to the average.
func recordConfidence(m *models.Metadata, confidence float64) {
	if confidence <= 0 {
		return
	}
	m.ConfidenceSamples = append(m.ConfidenceSamples, confidence)
	var sum float64
	for _, c := range m.ConfidenceSamples {
		sum += c
	}
	m.AverageConfidence = sum / float64(len(m.ConfidenceSamples))
}

func recordSentence(m *models.Metadata, words int) {
	m.TotalSentences++
	m.TotalWords += words
}
