// Package audio provides the audio stream handler that feeds STT adapter
// results into the transcript engine.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"acta-transcript-engine/internal/observability/logging"
	"acta-transcript-engine/internal/observability/metrics"
	"acta-transcript-engine/internal/service/stt"
	"acta-transcript-engine/internal/service/transcript"
)

// ErrLimitExceeded is returned by SendAudio once a stream limit is hit. The
// stream is stopped and no further audio is accepted.
var ErrLimitExceeded = errors.New("stream limit exceeded")

// ErrStreamClosed is returned by SendAudio after Close or a limit breach.
var ErrStreamClosed = errors.New("stream closed")

// Limits defines safety guardrails for one audio stream.
type Limits struct {
	MaxAudioBytes int64         // total audio accepted per stream
	MaxDuration   time.Duration // wall-clock lifetime of a stream
}

// DefaultLimits returns limits sized for a long meeting.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 50 * 1024 * 1024, // ~27 minutes of 16kHz 16-bit mono
		MaxDuration:   4 * time.Hour,
	}
}

// Dispatcher routes engine events to a session.
type Dispatcher interface {
	Dispatch(id string, ev transcript.Event) error
}

// Handler manages one audio stream for a transcript session. It implements
// stt.Callback and turns provider results into engine events.
type Handler struct {
	adapter    stt.Adapter
	dispatcher Dispatcher
	sessionID  string
	provider   string
	limits     Limits
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time

	mu         sync.Mutex
	startedAt  time.Time
	audioBytes int64
	frames     int
	finals     int
	utterances int
	stopped    bool
	failed     bool
}

// NewHandler creates a handler with DefaultLimits.
func NewHandler(adapter stt.Adapter, dispatcher Dispatcher, sessionID, provider string) *Handler {
	return NewHandlerWithLimits(adapter, dispatcher, sessionID, provider, DefaultLimits())
}

// NewHandlerWithLimits creates a handler with custom stream limits.
func NewHandlerWithLimits(adapter stt.Adapter, dispatcher Dispatcher, sessionID, provider string, limits Limits) *Handler {
	return &Handler{
		adapter:    adapter,
		dispatcher: dispatcher,
		sessionID:  sessionID,
		provider:   provider,
		limits:     limits,
		metrics:    metrics.DefaultMetrics,
		log:        logging.WithStream(sessionID, provider),
		now:        time.Now,
	}
}

// Start opens the provider stream with this handler as the callback and
// reports the provider as connected.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	h.startedAt = h.now()
	h.mu.Unlock()

	if err := h.adapter.Start(ctx, h); err != nil {
		h.metrics.RecordSTTError(h.provider)
		return fmt.Errorf("start %s stream: %w", h.provider, err)
	}
	h.metrics.RecordStreamStart()
	h.dispatch(transcript.ProviderStatus{Kind: transcript.ProviderConnected})
	h.log.Info().Msg("Audio stream started")
	return nil
}

// SendAudio forwards audio bytes to the adapter. Exceeding a limit stops
// the stream and returns ErrLimitExceeded.
func (h *Handler) SendAudio(ctx context.Context, audio []byte) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrStreamClosed
	}
	h.audioBytes += int64(len(audio))
	h.frames++
	total := h.audioBytes
	elapsed := h.now().Sub(h.startedAt)
	h.mu.Unlock()

	h.metrics.RecordAudioReceived(len(audio))

	if h.limits.MaxAudioBytes > 0 && total > h.limits.MaxAudioBytes {
		return h.exceed("audio_bytes", fmt.Sprintf("%d > %d bytes", total, h.limits.MaxAudioBytes))
	}
	if h.limits.MaxDuration > 0 && elapsed > h.limits.MaxDuration {
		return h.exceed("duration", fmt.Sprintf("%v > %v", elapsed.Round(time.Millisecond), h.limits.MaxDuration))
	}

	if err := h.adapter.SendAudio(ctx, audio); err != nil {
		h.metrics.RecordSTTError(h.provider)
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// Close ends the provider stream and reports the provider as closed. Safe
// to call more than once.
func (h *Handler) Close() error {
	h.mu.Lock()
	already := h.stopped
	h.stopped = true
	h.mu.Unlock()
	if already {
		return nil
	}
	return h.shutdown()
}

// Stats returns the current stream counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		AudioBytes: h.audioBytes,
		Frames:     h.frames,
		Finals:     h.finals,
		Utterances: h.utterances,
		Duration:   h.now().Sub(h.startedAt),
	}
}

// Stats holds per-stream usage counters.
type Stats struct {
	AudioBytes int64
	Frames     int
	Finals     int
	Utterances int
	Duration   time.Duration
}

// --- stt.Callback implementation ---

func (h *Handler) OnTranscript(r stt.Result) {
	if r.IsFinal {
		h.mu.Lock()
		h.finals++
		h.mu.Unlock()
	}
	h.dispatch(transcript.RecognitionEvent{
		Text:       r.Text,
		IsFinal:    r.IsFinal,
		Confidence: r.Confidence,
		Speaker:    r.Speaker,
	})
}

func (h *Handler) OnEndOfUtterance() {
	h.mu.Lock()
	h.utterances++
	n := h.utterances
	h.mu.Unlock()

	h.log.Debug().Int("utterance", n).Msg("End of utterance")
	h.dispatch(transcript.UtteranceEndEvent{})
}

// OnError reports the provider failure to the session. The engine does not
// reconnect; the stream is marked failed.
func (h *Handler) OnError(err error) {
	h.mu.Lock()
	h.failed = true
	h.mu.Unlock()

	h.metrics.RecordSTTError(h.provider)
	h.log.Error().Err(err).Msg("STT stream error")
	h.dispatch(transcript.ProviderStatus{Kind: transcript.ProviderFailed, Detail: err.Error()})
}

func (h *Handler) exceed(limitType, detail string) error {
	h.mu.Lock()
	already := h.stopped
	h.stopped = true
	h.failed = true
	h.mu.Unlock()

	h.metrics.RecordLimitExceeded(limitType)
	h.log.Warn().Str("limit", limitType).Str("detail", detail).Msg("Stream limit exceeded, stopping")
	if !already {
		_ = h.shutdown()
	}
	return fmt.Errorf("%w: %s", ErrLimitExceeded, detail)
}

func (h *Handler) shutdown() error {
	err := h.adapter.Close()

	h.mu.Lock()
	failed := h.failed || err != nil
	duration := h.now().Sub(h.startedAt)
	h.mu.Unlock()

	h.metrics.RecordStreamEnd(!failed, duration.Seconds())
	h.dispatch(transcript.ProviderStatus{Kind: transcript.ProviderClosed, Detail: "Audio stream ended"})
	h.log.Info().
		Dur("duration", duration).
		Bool("failed", failed).
		Msg("Audio stream closed")
	return err
}

// dispatch forwards ev; a session closed under a live stream is logged once
// per event and otherwise ignored.
func (h *Handler) dispatch(ev transcript.Event) {
	if err := h.dispatcher.Dispatch(h.sessionID, ev); err != nil {
		h.log.Debug().Err(err).Str("event", fmt.Sprintf("%T", ev)).Msg("Event not applied")
	}
}
