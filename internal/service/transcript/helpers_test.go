package transcript

import (
	"sync"
	"testing"
	"time"

	"acta-transcript-engine/internal/models"
)

// recordingRelay implements Broadcaster and keeps every event in order.
type recordingRelay struct {
	mu        sync.Mutex
	events    []models.Event
	forgotten []string
}

func (r *recordingRelay) add(ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingRelay) Status(ev models.Status)                       { r.add(ev) }
func (r *recordingRelay) TranscriptFinal(ev models.TranscriptFinal)     { r.add(ev) }
func (r *recordingRelay) TranscriptInterim(ev models.TranscriptInterim) { r.add(ev) }
func (r *recordingRelay) SentenceComplete(ev models.SentenceComplete)   { r.add(ev) }
func (r *recordingRelay) UtteranceEnd(ev models.UtteranceEnd)           { r.add(ev) }

func (r *recordingRelay) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgotten = append(r.forgotten, sessionID)
}

func (r *recordingRelay) family(f models.Family) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, ev := range r.events {
		if ev.EventFamily() == f {
			out = append(out, ev)
		}
	}
	return out
}

// fixedClock returns a clock that advances by one second on every call.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestController(t *testing.T, opts ...Option) (*Controller, *recordingRelay) {
	t.Helper()
	relay := &recordingRelay{}
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	return NewController(relay, opts...), relay
}

func openSession(t *testing.T, c *Controller, id string) *Session {
	t.Helper()
	s, err := c.Open(id, models.SessionConfig{})
	if err != nil {
		t.Fatalf("open %s: %v", id, err)
	}
	return s
}

func final(text string, confidence float64) RecognitionEvent {
	return RecognitionEvent{Text: text, IsFinal: true, Confidence: confidence}
}

func interim(text string) RecognitionEvent {
	return RecognitionEvent{Text: text}
}

func mustDispatch(t *testing.T, c *Controller, id string, ev Event) {
	t.Helper()
	if err := c.Dispatch(id, ev); err != nil {
		t.Fatalf("dispatch %T: %v", ev, err)
	}
}

func mustSnapshot(t *testing.T, c *Controller, id string) models.Summary {
	t.Helper()
	snap, err := c.Snapshot(id)
	if err != nil {
		t.Fatalf("snapshot %s: %v", id, err)
	}
	return snap
}
