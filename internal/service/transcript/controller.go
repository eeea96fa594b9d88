// Package transcript is the real-time transcript aggregation engine. It turns
// ordered interim and final recognition fragments into a growing transcript
// of finalized sentences, keeps per-session quality metadata, and notifies
// hooks and the broadcast relay.
//
// Each session processes its events strictly in arrival order; different
// sessions are independent and may be driven concurrently.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/observability/logging"
	"acta-transcript-engine/internal/observability/metrics"
	"acta-transcript-engine/internal/schema"
)

// DefaultForcedConfidence is assigned to sentences finalized by a silence
// gap or close rather than terminal punctuation.
const DefaultForcedConfidence = 0.9

// Broadcaster receives outbound events. Implementations treat delivery as
// fire-and-forget.
type Broadcaster interface {
	Status(ev models.Status)
	TranscriptFinal(ev models.TranscriptFinal)
	TranscriptInterim(ev models.TranscriptInterim)
	SentenceComplete(ev models.SentenceComplete)
	UtteranceEnd(ev models.UtteranceEnd)
	// Forget releases any per-session relay state.
	Forget(sessionID string)
}

// HookInstaller registers hooks on every newly opened session before it
// becomes visible to Dispatch.
type HookInstaller func(sessionID string, hooks *HookRegistry)

// Option configures a Controller.
type Option func(*Controller)

// WithBoundaryDetector replaces the punctuation sentence-boundary heuristic.
func WithBoundaryDetector(d BoundaryDetector) Option {
	return func(c *Controller) {
		if d != nil {
			c.boundary = d
		}
	}
}

// WithForcedConfidence sets the confidence given to force-finalized sentences.
func WithForcedConfidence(conf float64) Option {
	return func(c *Controller) {
		c.forcedConfidence = conf
	}
}

// WithDefaults sets the config substituted for unset session options.
func WithDefaults(def models.SessionConfig) Option {
	return func(c *Controller) {
		c.defaults = def
	}
}

// WithHookInstaller installs hooks on each new session.
func WithHookInstaller(fn HookInstaller) Option {
	return func(c *Controller) {
		c.installers = append(c.installers, fn)
	}
}

// WithMetrics overrides the metrics instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller owns the registry of live sessions keyed by id.
type Controller struct {
	relay            Broadcaster
	boundary         BoundaryDetector
	forcedConfidence float64
	defaults         models.SessionConfig
	installers       []HookInstaller
	metrics          *metrics.Metrics
	validator        *schema.Validator
	now              func() time.Time
	log              zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewController creates a Controller that broadcasts through relay.
func NewController(relay Broadcaster, opts ...Option) *Controller {
	c := &Controller{
		relay:            relay,
		boundary:         NewPunctuationBoundary(""),
		forcedConfidence: DefaultForcedConfidence,
		defaults:         models.DefaultSessionConfig(),
		metrics:          metrics.DefaultMetrics,
		validator:        schema.New(),
		now:              time.Now,
		log:              logging.WithComponent("transcript.Controller"),
		sessions:         make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open creates and registers a connected session for id.
func (c *Controller) Open(id string, cfg models.SessionConfig) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrInvalidConfig)
	}
	effective := cfg.WithDefaults(c.defaults)
	if err := c.validator.Validate(effective); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	sessLog := logging.WithSession(id)
	s := &Session{
		id:               id,
		config:           effective,
		startedAt:        c.now(),
		log:              sessLog,
		hooks:            newHookRegistry(id, sessLog, c.metrics),
		lifecycle:        NewLifecycle(),
		relay:            c.relay,
		boundary:         c.boundary,
		metrics:          c.metrics,
		forcedConfidence: c.forcedConfidence,
		now:              c.now,
	}
	for _, install := range c.installers {
		install(id, s.hooks)
	}

	// Hold the session's event lock until the connected status is out so
	// no event broadcast can precede it.
	s.seq.Lock()
	defer s.seq.Unlock()

	c.mu.Lock()
	if _, exists := c.sessions[id]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("open %q: %w", id, ErrAlreadyOpen)
	}
	c.sessions[id] = s
	c.mu.Unlock()

	c.metrics.RecordSessionOpened()
	cfgCopy := effective
	c.relay.Status(models.Status{
		EventType: string(models.FamilyStatus),
		SessionID: id,
		State:     models.StateConnected,
		Message:   "Session connected",
		Config:    &cfgCopy,
		Timestamp: s.startedAt.UnixMilli(),
	})

	sessLog.Info().
		Str("model", effective.Model).
		Str("language", effective.Language).
		Msg("Session opened")
	return s, nil
}

// Dispatch routes ev to the session for id. Unknown ids and late events are
// logged and reported as ErrSessionNotFound without touching any state.
func (c *Controller) Dispatch(id string, ev Event) error {
	s := c.lookup(id)
	if s == nil {
		c.log.Warn().
			Str("sessionId", id).
			Str("event", fmt.Sprintf("%T", ev)).
			Msg("Event for unknown session dropped")
		c.metrics.RecordDropped("unknown_session")
		return fmt.Errorf("dispatch %q: %w", id, ErrSessionNotFound)
	}
	return s.handle(ev)
}

// Close flushes the pending sentence, marks the session disconnected,
// removes it and returns its summary. A second Close fails with
// ErrSessionNotFound.
func (c *Controller) Close(id string) (models.Summary, error) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	if ok {
		delete(c.sessions, id)
	}
	c.mu.Unlock()

	if !ok {
		return models.Summary{}, fmt.Errorf("close %q: %w", id, ErrSessionNotFound)
	}

	summary, closed := s.close()
	if !closed {
		return models.Summary{}, fmt.Errorf("close %q: %w", id, ErrSessionNotFound)
	}
	c.relay.Forget(id)
	c.metrics.RecordSessionClosed(float64(summary.DurationMs) / 1000)

	s.log.Info().
		Int("sentences", summary.Metadata.TotalSentences).
		Int("words", summary.Metadata.TotalWords).
		Float64("averageConfidence", summary.Metadata.AverageConfidence).
		Int64("durationMs", summary.DurationMs).
		Msg("Session closed")
	return summary, nil
}

// CloseAll closes every live session concurrently, for shutdown.
func (c *Controller) CloseAll(ctx context.Context) []models.Summary {
	ids := c.IDs()

	var (
		mu        sync.Mutex
		summaries = make([]models.Summary, 0, len(ids))
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			summary, err := c.Close(id)
			if errors.Is(err, ErrSessionNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			summaries = append(summaries, summary)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.log.Warn().Err(err).Msg("CloseAll interrupted")
	}
	return summaries
}

// Snapshot returns a read-only view of a live session.
func (c *Controller) Snapshot(id string) (models.Summary, error) {
	s := c.lookup(id)
	if s == nil {
		return models.Summary{}, fmt.Errorf("snapshot %q: %w", id, ErrSessionNotFound)
	}
	return s.snapshot(), nil
}

// Hooks returns the hook registry of a live session.
func (c *Controller) Hooks(id string) (*HookRegistry, error) {
	s := c.lookup(id)
	if s == nil {
		return nil, fmt.Errorf("hooks %q: %w", id, ErrSessionNotFound)
	}
	return s.hooks, nil
}

// IDs returns the ids of all live sessions, sorted.
func (c *Controller) IDs() []string {
	c.mu.RLock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (c *Controller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *Controller) lookup(id string) *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions[id]
}
