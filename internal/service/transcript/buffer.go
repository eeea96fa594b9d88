package transcript

// Buffer holds the text state of one session.
//
// Full only ever grows. Pending is cleared exactly when a sentence is
// finalized. Current is a display-only preview.
type Buffer struct {
	Pending     string
	Current     string
	Full        string
	LastFinal   string
	LastInterim string
}

// appendFinal adds a confirmed fragment to the pending sentence.
func (b *Buffer) appendFinal(text string) {
	b.Pending = joinSpace(b.Pending, text)
}

// preview returns the pending sentence followed by an interim fragment.
func (b *Buffer) preview(interim string) string {
	return joinSpace(b.Pending, interim)
}

// commit appends a finalized sentence to the full transcript and clears the
// pending sentence.
func (b *Buffer) commit(sentence string) {
	b.Full = joinSpace(b.Full, sentence)
	b.Pending = ""
}

func joinSpace(head, tail string) string {
	if head == "" {
		return tail
	}
	if tail == "" {
		return head
	}
	return head + " " + tail
}
