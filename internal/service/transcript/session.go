package transcript

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/observability/metrics"
)

// Sentence finalization triggers, used as metric labels.
const (
	triggerPunctuation  = "punctuation"
	triggerUtteranceEnd = "utterance_end"
	triggerClose        = "close"
)

const lastSentencesWindow = 3

// Session is the isolated state of one actively transcribing meeting or
// stream. All mutation happens through handle and close.
//
// seq serializes whole events (mutation plus notifications) so hooks and
// broadcasts observe per-session arrival order. mu guards the state only,
// so hooks may take snapshots without deadlocking.
type Session struct {
	id        string
	config    models.SessionConfig
	startedAt time.Time
	log       zerolog.Logger
	hooks     *HookRegistry
	lifecycle *Lifecycle

	relay            Broadcaster
	boundary         BoundaryDetector
	metrics          *metrics.Metrics
	forcedConfidence float64
	now              func() time.Time

	seq       sync.Mutex
	mu        sync.Mutex
	buf       Buffer
	sentences []models.Sentence
	meta      models.Metadata
}

// notification is a deferred hook or broadcast call, fired after the state
// lock is released.
type notification func()

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Config returns the effective session config.
func (s *Session) Config() models.SessionConfig {
	return s.config
}

// Hooks returns the session's hook registry.
func (s *Session) Hooks() *HookRegistry {
	return s.hooks
}

// handle processes one inbound event in arrival order.
func (s *Session) handle(ev Event) error {
	s.seq.Lock()
	defer s.seq.Unlock()

	if s.lifecycle.IsClosed() {
		s.log.Warn().Msg("Event arrived after close, dropped")
		s.metrics.RecordDropped("closed")
		return fmt.Errorf("session %q: %w", s.id, ErrSessionNotFound)
	}

	var (
		pending []notification
		err     error
	)
	s.mu.Lock()
	switch e := ev.(type) {
	case RecognitionEvent:
		if e.IsFinal {
			pending, err = s.onFinal(e)
		} else {
			pending, err = s.onInterim(e)
		}
	case *RecognitionEvent:
		if e == nil {
			err = fmt.Errorf("%w: nil recognition event", ErrMalformedEvent)
		} else if e.IsFinal {
			pending, err = s.onFinal(*e)
		} else {
			pending, err = s.onInterim(*e)
		}
	case UtteranceEndEvent, *UtteranceEndEvent:
		pending = s.onUtteranceEnd(triggerUtteranceEnd)
	case ProviderStatus:
		pending, err = s.onProviderStatus(e)
	case *ProviderStatus:
		if e == nil {
			err = fmt.Errorf("%w: nil provider status", ErrMalformedEvent)
		} else {
			pending, err = s.onProviderStatus(*e)
		}
	default:
		err = fmt.Errorf("%w: unsupported event %T", ErrMalformedEvent, ev)
	}
	s.mu.Unlock()

	for _, n := range pending {
		n()
	}

	if err != nil {
		s.log.Warn().Err(err).Msg("Event discarded")
		s.metrics.RecordDropped("malformed")
	}
	return err
}

// onFinal applies a confirmed fragment. Caller holds mu.
func (s *Session) onFinal(e RecognitionEvent) ([]notification, error) {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: final fragment without text", ErrMalformedEvent)
	}
	if !validConfidence(e.Confidence) {
		return nil, fmt.Errorf("%w: confidence %v out of range", ErrMalformedEvent, e.Confidence)
	}

	if text == s.buf.LastFinal {
		s.log.Debug().Str("text", text).Msg("Duplicate final suppressed")
		s.metrics.RecordDuplicate()
		return nil, nil
	}
	s.metrics.RecordFinal()

	s.buf.LastFinal = text
	s.buf.LastInterim = ""
	s.buf.appendFinal(text)

	var out []notification
	if s.boundary.IsBoundary(text) {
		out = append(out, s.finalize(s.buf.Pending, e.Confidence, triggerPunctuation)...)
		s.buf.Pending = ""
	}
	s.buf.Current = s.buf.Pending

	recordConfidence(&s.meta, e.Confidence)

	now := s.now()
	update := TranscriptUpdate{
		Text:            text,
		IsFinal:         true,
		Confidence:      e.Confidence,
		Speaker:         e.Speaker,
		FullTranscript:  s.buf.Full,
		CurrentSentence: s.buf.Current,
		Metadata:        s.meta.Clone(),
	}
	msg := models.TranscriptFinal{
		EventType:  string(models.FamilyTranscriptFinal),
		SessionID:  s.id,
		Text:       text,
		FullText:   s.buf.Full,
		Confidence: e.Confidence,
		Speaker:    e.Speaker,
		Timestamp:  now.UnixMilli(),
	}
	out = append(out,
		func() { s.relay.TranscriptFinal(msg) },
		func() { s.hooks.transcriptUpdated(update) },
	)
	return out, nil
}

// onInterim updates the live preview only. Caller holds mu.
func (s *Session) onInterim(e RecognitionEvent) ([]notification, error) {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: interim fragment without text", ErrMalformedEvent)
	}
	if !validConfidence(e.Confidence) {
		return nil, fmt.Errorf("%w: confidence %v out of range", ErrMalformedEvent, e.Confidence)
	}
	if text == s.buf.LastInterim {
		return nil, nil
	}
	s.metrics.RecordInterim()

	s.buf.LastInterim = text
	s.buf.Current = s.buf.preview(text)

	update := TranscriptUpdate{
		Text:            text,
		IsFinal:         false,
		Confidence:      e.Confidence,
		Speaker:         e.Speaker,
		FullTranscript:  s.buf.Full,
		CurrentSentence: s.buf.Current,
		Metadata:        s.meta.Clone(),
	}
	msg := models.TranscriptInterim{
		EventType:       string(models.FamilyTranscriptInterim),
		SessionID:       s.id,
		Text:            text,
		CurrentSentence: s.buf.Current,
		Speaker:         e.Speaker,
		Timestamp:       s.now().UnixMilli(),
	}
	return []notification{
		func() { s.relay.TranscriptInterim(msg) },
		func() { s.hooks.transcriptUpdated(update) },
	}, nil
}

// onUtteranceEnd force-finalizes pending text at a silence gap. Caller
// holds mu.
func (s *Session) onUtteranceEnd(trigger string) []notification {
	s.metrics.RecordUtterance()

	var out []notification
	if s.buf.Pending != "" {
		out = append(out, s.finalize(s.buf.Pending, s.forcedConfidence, trigger)...)
	}
	s.buf.Pending = ""
	s.buf.Current = ""
	s.buf.LastInterim = ""

	last := s.sentences
	if len(last) > lastSentencesWindow {
		last = last[len(last)-lastSentencesWindow:]
	}
	completion := UtteranceCompletion{
		FullTranscript: s.buf.Full,
		LastSentences:  append([]models.Sentence(nil), last...),
		Metadata:       s.meta.Clone(),
	}
	msg := models.UtteranceEnd{
		EventType:      string(models.FamilyUtteranceEnd),
		SessionID:      s.id,
		Message:        "Utterance ended",
		FullTranscript: s.buf.Full,
		Timestamp:      s.now().UnixMilli(),
	}
	return append(out,
		func() { s.hooks.utteranceEnded(completion) },
		func() { s.relay.UtteranceEnd(msg) },
	)
}

// onProviderStatus tracks the provider connection. Caller holds mu.
func (s *Session) onProviderStatus(e ProviderStatus) ([]notification, error) {
	status := models.Status{
		EventType: string(models.FamilyStatus),
		SessionID: s.id,
		Message:   e.Detail,
		Timestamp: s.now().UnixMilli(),
	}

	switch e.Kind {
	case ProviderConnected:
		_ = s.lifecycle.MarkConnected()
		status.State = models.StateConnected
		if status.Message == "" {
			status.Message = "Provider connected"
		}
		return []notification{func() { s.relay.Status(status) }}, nil
	case ProviderClosed:
		_ = s.lifecycle.MarkDisconnected()
		status.State = models.StateClosed
		if status.Message == "" {
			status.Message = "Provider connection closed"
		}
		return []notification{func() { s.relay.Status(status) }}, nil
	case ProviderFailed:
		s.metrics.RecordProviderError()
		perr := &ProviderError{SessionID: s.id, Detail: e.Detail}
		status.State = models.StateError
		s.log.Error().Err(perr).Msg("Provider reported error")
		return []notification{
			func() { s.hooks.reportError(perr) },
			func() { s.relay.Status(status) },
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider status %q", ErrMalformedEvent, e.Kind)
	}
}

// finalize commits raw as a sentence and returns its notifications. A
// blank raw is a no-op. Caller holds mu.
func (s *Session) finalize(raw string, confidence float64, trigger string) []notification {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	sentence := models.Sentence{
		Text:           text,
		Confidence:     confidence,
		Timestamp:      s.now(),
		WordCount:      len(strings.Fields(text)),
		SequenceNumber: s.meta.TotalSentences + 1,
	}
	s.sentences = append(s.sentences, sentence)
	s.buf.commit(text)
	recordSentence(&s.meta, sentence.WordCount)
	s.metrics.RecordSentence(trigger, sentence.WordCount)

	s.log.Debug().
		Int("sequenceNumber", sentence.SequenceNumber).
		Str("trigger", trigger).
		Msg("Sentence finalized")

	meta := s.meta.Clone()
	completion := SentenceCompletion{
		Sentence:       sentence,
		FullTranscript: s.buf.Full,
		AllSentences:   append([]models.Sentence(nil), s.sentences...),
		Metadata:       meta,
	}
	msg := models.SentenceComplete{
		EventType:      string(models.FamilySentenceComplete),
		SessionID:      s.id,
		Sentence:       sentence,
		FullTranscript: s.buf.Full,
		SentenceNumber: sentence.SequenceNumber,
		Metadata:       meta,
		Timestamp:      sentence.Timestamp.UnixMilli(),
	}
	return []notification{
		func() { s.relay.SentenceComplete(msg) },
		func() { s.hooks.sentenceCompleted(completion) },
	}
}

// close flushes pending text exactly once and returns the final summary.
func (s *Session) close() (models.Summary, bool) {
	s.seq.Lock()
	defer s.seq.Unlock()

	if !s.lifecycle.Close() {
		return models.Summary{}, false
	}

	s.mu.Lock()
	pending := s.onUtteranceEnd(triggerClose)
	summary := s.summaryLocked()
	s.mu.Unlock()

	status := models.Status{
		EventType: string(models.FamilyStatus),
		SessionID: s.id,
		State:     models.StateClosed,
		Message:   "Session closed",
		Timestamp: s.now().UnixMilli(),
	}
	pending = append(pending, func() { s.relay.Status(status) })
	for _, n := range pending {
		n()
	}
	return summary, true
}

// snapshot returns a consistent read-only view of the session.
func (s *Session) snapshot() models.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() models.Summary {
	return models.Summary{
		SessionID:       s.id,
		FullTranscript:  s.buf.Full,
		Sentences:       append([]models.Sentence(nil), s.sentences...),
		Metadata:        s.meta.Clone(),
		Config:          s.config,
		Connected:       s.lifecycle.Connected(),
		CurrentSentence: s.buf.Current,
		PendingSentence: s.buf.Pending,
		StartedAt:       s.startedAt,
		DurationMs:      s.now().Sub(s.startedAt).Milliseconds(),
	}
}

func validConfidence(c float64) bool {
	return !math.IsNaN(c) && c >= 0 && c <= 1
}
