// Package models defines the data structures for transcript sessions and the
// events broadcast to downstream consumers.
package models

// Family identifies one of the broadcast event families.
type Family string

const (
	FamilyStatus            Family = "status"
	FamilyTranscriptFinal   Family = "transcript-final"
	FamilyTranscriptInterim Family = "transcript-interim"
	FamilySentenceComplete  Family = "sentence-complete"
	FamilyUtteranceEnd      Family = "utterance-end"
)

// Families lists every broadcast family in a stable order.
var Families = []Family{
	FamilyStatus,
	FamilyTranscriptFinal,
	FamilyTranscriptInterim,
	FamilySentenceComplete,
	FamilyUtteranceEnd,
}

// Session states reported in Status events.
const (
	StateConnected = "connected"
	StateClosed    = "closed"
	StateError     = "error"
)

// Event is implemented by every message the broadcast relay forwards.
type Event interface {
	EventFamily() Family
	Session() string
}

// Status reports a session state change.
type Status struct {
	EventType string         `json:"eventType" validate:"required"`
	SessionID string         `json:"sessionId" validate:"required"`
	State     string         `json:"state" validate:"required,oneof=connected closed error"`
	Message   string         `json:"message"`
	Config    *SessionConfig `json:"config,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// TranscriptFinal carries a confirmed fragment and the transcript so far.
type TranscriptFinal struct {
	EventType  string  `json:"eventType" validate:"required"`
	SessionID  string  `json:"sessionId" validate:"required"`
	Text       string  `json:"text" validate:"required"`
	FullText   string  `json:"fullText"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
	Speaker    string  `json:"speaker,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// TranscriptInterim carries the live preview. Subject to throttling.
type TranscriptInterim struct {
	EventType       string `json:"eventType" validate:"required"`
	SessionID       string `json:"sessionId" validate:"required"`
	Text            string `json:"text" validate:"required"`
	CurrentSentence string `json:"currentSentence"`
	Speaker         string `json:"speaker,omitempty"`
	Timestamp       int64  `json:"timestamp"`
}

// SentenceComplete is emitted once per finalized sentence.
type SentenceComplete struct {
	EventType      string   `json:"eventType" validate:"required"`
	SessionID      string   `json:"sessionId" validate:"required"`
	Sentence       Sentence `json:"sentence"`
	FullTranscript string   `json:"fullTranscript"`
	SentenceNumber int      `json:"sentenceNumber" validate:"gte=1"`
	Metadata       Metadata `json:"metadata"`
	Timestamp      int64    `json:"timestamp"`
}

// UtteranceEnd is emitted when the provider reports a speaker pause.
type UtteranceEnd struct {
	EventType      string `json:"eventType" validate:"required"`
	SessionID      string `json:"sessionId" validate:"required"`
	Message        string `json:"message"`
	FullTranscript string `json:"fullTranscript"`
	Timestamp      int64  `json:"timestamp"`
}

func (e Status) EventFamily() Family            { return FamilyStatus }
func (e Status) Session() string                { return e.SessionID }
func (e TranscriptFinal) EventFamily() Family   { return FamilyTranscriptFinal }
func (e TranscriptFinal) Session() string       { return e.SessionID }
func (e TranscriptInterim) EventFamily() Family { return FamilyTranscriptInterim }
func (e TranscriptInterim) Session() string     { return e.SessionID }
func (e SentenceComplete) EventFamily() Family  { return FamilySentenceComplete }
func (e SentenceComplete) Session() string      { return e.SessionID }
func (e UtteranceEnd) EventFamily() Family      { return FamilyUtteranceEnd }
func (e UtteranceEnd) Session() string          { return e.SessionID }
