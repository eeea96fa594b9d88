package models

import "time"

// SessionConfig holds the recognized per-session options. The engine passes
// them through to the provider; only defaults substitution happens here.
type SessionConfig struct {
	Model                 string `json:"model,omitempty" yaml:"model"`
	Language              string `json:"language,omitempty" yaml:"language"`
	UtteranceSilenceMs    int    `json:"utteranceSilenceMs,omitempty" yaml:"utteranceSilenceMs" validate:"gte=0"`
	InterimResultsEnabled *bool  `json:"interimResultsEnabled,omitempty" yaml:"interimResultsEnabled"`
	SmartFormat           *bool  `json:"smartFormat,omitempty" yaml:"smartFormat"`
	Punctuate             *bool  `json:"punctuate,omitempty" yaml:"punctuate"`
	Diarize               *bool  `json:"diarize,omitempty" yaml:"diarize"`
	SampleRate            int    `json:"sampleRate,omitempty" yaml:"sampleRate" validate:"gte=0"`
	Encoding              string `json:"encoding,omitempty" yaml:"encoding"`
	Channels              int    `json:"channels,omitempty" yaml:"channels" validate:"gte=0,lte=8"`
}

// Default values for the options the engine itself documents.
const (
	DefaultUtteranceSilenceMs = 1500
)

// DefaultSessionConfig returns the built-in defaults: 1500ms utterance
// silence, interim results, smart formatting and punctuation on, diarization off.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		UtteranceSilenceMs:    DefaultUtteranceSilenceMs,
		InterimResultsEnabled: Bool(true),
		SmartFormat:           Bool(true),
		Punctuate:             Bool(true),
		Diarize:               Bool(false),
	}
}

// WithDefaults returns a copy of c where every unset field is taken from def.
func (c SessionConfig) WithDefaults(def SessionConfig) SessionConfig {
	out := c
	if out.Model == "" {
		out.Model = def.Model
	}
	if out.Language == "" {
		out.Language = def.Language
	}
	if out.UtteranceSilenceMs == 0 {
		out.UtteranceSilenceMs = def.UtteranceSilenceMs
	}
	if out.InterimResultsEnabled == nil {
		out.InterimResultsEnabled = copyBool(def.InterimResultsEnabled)
	}
	if out.SmartFormat == nil {
		out.SmartFormat = copyBool(def.SmartFormat)
	}
	if out.Punctuate == nil {
		out.Punctuate = copyBool(def.Punctuate)
	}
	if out.Diarize == nil {
		out.Diarize = copyBool(def.Diarize)
	}
	if out.SampleRate == 0 {
		out.SampleRate = def.SampleRate
	}
	if out.Encoding == "" {
		out.Encoding = def.Encoding
	}
	if out.Channels == 0 {
		out.Channels = def.Channels
	}
	return out
}

// Enabled reports the value of an optional flag, false when unset.
func Enabled(b *bool) bool {
	return b != nil && *b
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// Sentence is an immutable, finalized unit of transcript.
type Sentence struct {
	Text           string    `json:"text"`
	Confidence     float64   `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
	WordCount      int       `json:"wordCount"`
	SequenceNumber int       `json:"sequenceNumber"`
}

// Metadata holds running session quality statistics.
type Metadata struct {
	TotalWords        int       `json:"totalWords"`
	TotalSentences    int       `json:"totalSentences"`
	ConfidenceSamples []float64 `json:"confidenceSamples"`
	AverageConfidence float64   `json:"averageConfidence"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (m Metadata) Clone() Metadata {
	out := m
	out.ConfidenceSamples = append([]float64(nil), m.ConfidenceSamples...)
	return out
}

// Summary is returned when a session is closed, and as a live snapshot.
type Summary struct {
	SessionID       string        `json:"sessionId"`
	FullTranscript  string        `json:"fullTranscript"`
	Sentences       []Sentence    `json:"sentences"`
	Metadata        Metadata      `json:"metadata"`
	Config          SessionConfig `json:"config"`
	Connected       bool          `json:"connected"`
	CurrentSentence string        `json:"currentSentence,omitempty"`
	PendingSentence string        `json:"pendingSentence,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
	DurationMs      int64         `json:"durationMs"`
}

// Insights is the result of post-session analysis of a transcript.
type Insights struct {
	Title       string   `json:"title"`
	Summary     []string `json:"summary"`
	ActionItems []string `json:"actionItems"`
	KeyPoints   []string `json:"keyPoints"`
}
