package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// BoundaryDetector decides whether a final fragment completes a sentence.
type BoundaryDetector interface {
	IsBoundary(text string) bool
}

// BoundaryFunc adapts a plain function to BoundaryDetector.
type BoundaryFunc func(text string) bool

func (f BoundaryFunc) IsBoundary(text string) bool {
	return f(text)
}

// DefaultTerminators are the sentence-ending runes used when none are given.
const DefaultTerminators = ".!?"

// PunctuationBoundary treats a fragment whose last non-space rune is one of
// Terminators as the end of a sentence.
type PunctuationBoundary struct {
	Terminators string
}

// NewPunctuationBoundary returns a detector for the given terminators, or
// DefaultTerminators when empty.
func NewPunctuationBoundary(terminators string) PunctuationBoundary {
	if terminators == "" {
		terminators = DefaultTerminators
	}
	return PunctuationBoundary{Terminators: terminators}
}

func (p PunctuationBoundary) IsBoundary(text string) bool {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if trimmed == "" {
		return false
	}
	terms := p.Terminators
	if terms == "" {
		terms = DefaultTerminators
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	return strings.ContainsRune(terms, last)
}
