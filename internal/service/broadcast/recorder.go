package broadcast

import (
	"context"
	"sync"

	"acta-transcript-engine/internal/models"
)

// Recorder is an in-memory Sink that keeps the most recent events of each
// session. It backs the recent-events debug endpoint.
type Recorder struct {
	limit int

	mu     sync.RWMutex
	events map[string][]models.Event
}

// NewRecorder keeps up to limit events per session; limit <= 0 means
// unbounded.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit, events: make(map[string][]models.Event)}
}

func (r *Recorder) Publish(_ context.Context, ev models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append(r.events[ev.Session()], ev)
	if r.limit > 0 && len(list) > r.limit {
		list = append([]models.Event(nil), list[len(list)-r.limit:]...)
	}
	r.events[ev.Session()] = list
	return nil
}

// Events returns a copy of the recorded events of a session.
func (r *Recorder) Events(sessionID string) []models.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Event(nil), r.events[sessionID]...)
}

// Family returns the recorded events of one family for a session.
func (r *Recorder) Family(sessionID string, f models.Family) []models.Event {
	var out []models.Event
	for _, ev := range r.Events(sessionID) {
		if ev.EventFamily() == f {
			out = append(out, ev)
		}
	}
	return out
}

// Forget drops the history of a session.
func (r *Recorder) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, sessionID)
}
