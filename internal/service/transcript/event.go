package transcript

// Event is an inbound provider notification routed to one session.
// Implemented by RecognitionEvent, UtteranceEndEvent and ProviderStatus.
type Event interface {
	isEvent()
}

// RecognitionEvent is an interim or final text fragment.
type RecognitionEvent struct {
	Text       string
	IsFinal    bool
	Confidence float64 // 0 if unknown
	Speaker    string  // opaque diarization label, passed through
}

// UtteranceEndEvent signals a provider-detected speaker pause.
type UtteranceEndEvent struct{}

// ProviderStatusKind enumerates provider connection states.
type ProviderStatusKind string

const (
	ProviderConnected ProviderStatusKind = "connected"
	ProviderClosed    ProviderStatusKind = "closed"
	ProviderFailed    ProviderStatusKind = "error"
)

// ProviderStatus reports a change in the provider connection.
type ProviderStatus struct {
	Kind   ProviderStatusKind
	Detail string
}

func (RecognitionEvent) isEvent()  {}
func (UtteranceEndEvent) isEvent() {}
func (ProviderStatus) isEvent()    {}
