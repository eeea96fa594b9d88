// Package broadcast forwards engine events to downstream sinks (Kafka,
// websocket subscribers). Interim previews are throttled per session;
// every other family is always delivered.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/observability/logging"
	"acta-transcript-engine/internal/observability/metrics"
	"acta-transcript-engine/internal/schema"
)

// DefaultInterimInterval is the minimum spacing between two interim
// broadcasts of the same session.
const DefaultInterimInterval = 250 * time.Millisecond

const defaultPublishTimeout = 5 * time.Second

// Sink receives validated outbound events.
type Sink interface {
	Publish(ctx context.Context, ev models.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev models.Event) error

func (f SinkFunc) Publish(ctx context.Context, ev models.Event) error {
	return f(ctx, ev)
}

// Option configures a Relay.
type Option func(*Relay)

// WithInterimInterval sets the per-session interim throttle. Zero or a
// negative value disables throttling.
func WithInterimInterval(d time.Duration) Option {
	return func(r *Relay) {
		r.interval = d
	}
}

// WithClock overrides time.Now for the throttle.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

// WithPublishTimeout bounds each sink call.
func WithPublishTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMetrics overrides the metrics instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		if m != nil {
			r.metrics = m
		}
	}
}

// Relay fans engine events out to every sink. Delivery is fire-and-forget:
// validation and sink failures are logged and counted, never returned.
type Relay struct {
	sinks     []Sink
	validator *schema.Validator
	interval  time.Duration
	timeout   time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
	log       zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRelay creates a Relay delivering to sinks in order.
func NewRelay(sinks []Sink, opts ...Option) *Relay {
	r := &Relay{
		sinks:     sinks,
		validator: schema.New(),
		interval:  DefaultInterimInterval,
		timeout:   defaultPublishTimeout,
		now:       time.Now,
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("broadcast.Relay"),
		limiters:  make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddSink registers another sink. Not safe to call while events flow.
func (r *Relay) AddSink(s Sink) {
	if s != nil {
		r.sinks = append(r.sinks, s)
	}
}

func (r *Relay) Status(ev models.Status)                     { r.deliver(ev) }
func (r *Relay) TranscriptFinal(ev models.TranscriptFinal)   { r.deliver(ev) }
func (r *Relay) SentenceComplete(ev models.SentenceComplete) { r.deliver(ev) }
func (r *Relay) UtteranceEnd(ev models.UtteranceEnd)         { r.deliver(ev) }

// TranscriptInterim delivers ev unless the session's throttle window is
// still open. The first interim of a session always passes.
func (r *Relay) TranscriptInterim(ev models.TranscriptInterim) {
	if !r.allowInterim(ev.SessionID) {
		r.metrics.RecordInterimThrottled()
		r.log.Debug().
			Str("sessionId", ev.SessionID).
			Msg("Interim throttled")
		return
	}
	r.deliver(ev)
}

// forgetter is implemented by sinks that keep per-session state.
type forgetter interface {
	Forget(sessionID string)
}

// Forget drops the throttle state of a closed session and tells every
// stateful sink to do the same.
func (r *Relay) Forget(sessionID string) {
	r.mu.Lock()
	delete(r.limiters, sessionID)
	r.mu.Unlock()

	for _, sink := range r.sinks {
		if f, ok := sink.(forgetter); ok {
			f.Forget(sessionID)
		}
	}
}

func (r *Relay) allowInterim(sessionID string) bool {
	if r.interval <= 0 {
		return true
	}
	r.mu.Lock()
	lim, ok := r.limiters[sessionID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(r.interval), 1)
		r.limiters[sessionID] = lim
	}
	r.mu.Unlock()
	return lim.AllowN(r.now(), 1)
}

func (r *Relay) deliver(ev models.Event) {
	family := string(ev.EventFamily())
	if err := r.validator.Validate(ev); err != nil {
		r.log.Error().
			Err(err).
			Str("sessionId", ev.Session()).
			Str("family", family).
			Msg("Outbound event failed validation")
		r.metrics.RecordBroadcast(family, err)
		return
	}

	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := sink.Publish(ctx, ev)
		cancel()
		if err != nil {
			r.log.Warn().
				Err(err).
				Str("sessionId", ev.Session()).
				Str("family", family).
				Msg("Sink publish failed")
		}
		r.metrics.RecordBroadcast(family, err)
	}
}
