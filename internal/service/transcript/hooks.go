package transcript

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/observability/metrics"
)

// Hook names as reported in HookExecutionError and metrics.
const (
	HookSentenceComplete = "onSentenceComplete"
	HookTranscriptUpdate = "onTranscriptUpdate"
	HookUtteranceEnd     = "onUtteranceEnd"
	HookError            = "onError"
)

// TranscriptUpdate is passed to TranscriptUpdateHook for every accepted
// final or interim fragment.
type TranscriptUpdate struct {
	Text            string
	IsFinal         bool
	Confidence      float64
	Speaker         string
	FullTranscript  string
	CurrentSentence string
	Metadata        models.Metadata
}

// SentenceCompletion is passed to SentenceCompleteHook.
type SentenceCompletion struct {
	Sentence       models.Sentence
	FullTranscript string
	AllSentences   []models.Sentence
	Metadata       models.Metadata
}

// UtteranceCompletion is passed to UtteranceEndHook. LastSentences holds at
// most the last three sentences.
type UtteranceCompletion struct {
	FullTranscript string
	LastSentences  []models.Sentence
	Metadata       models.Metadata
}

type SentenceCompleteHook interface {
	OnSentenceComplete(SentenceCompletion) error
}

type TranscriptUpdateHook interface {
	OnTranscriptUpdate(TranscriptUpdate) error
}

type UtteranceEndHook interface {
	OnUtteranceEnd(UtteranceCompletion) error
}

type ErrorHook interface {
	OnError(error)
}

// Function adapters for the hook interfaces.
type (
	SentenceCompleteFunc func(SentenceCompletion) error
	TranscriptUpdateFunc func(TranscriptUpdate) error
	UtteranceEndFunc     func(UtteranceCompletion) error
	ErrorFunc            func(error)
)

func (f SentenceCompleteFunc) OnSentenceComplete(ev SentenceCompletion) error { return f(ev) }
func (f TranscriptUpdateFunc) OnTranscriptUpdate(ev TranscriptUpdate) error   { return f(ev) }
func (f UtteranceEndFunc) OnUtteranceEnd(ev UtteranceCompletion) error        { return f(ev) }
func (f ErrorFunc) OnError(err error)                                         { f(err) }

// HookRegistry holds at most one handler per slot. Registering a handler
// replaces the previous one (last registration wins); registering nil
// clears the slot.
type HookRegistry struct {
	sessionID string
	log       zerolog.Logger
	metrics   *metrics.Metrics

	mu               sync.RWMutex
	sentenceComplete SentenceCompleteHook
	transcriptUpdate TranscriptUpdateHook
	utteranceEnd     UtteranceEndHook
	onError          ErrorHook
}

func newHookRegistry(sessionID string, log zerolog.Logger, m *metrics.Metrics) *HookRegistry {
	return &HookRegistry{sessionID: sessionID, log: log, metrics: m}
}

func (r *HookRegistry) SetSentenceComplete(h SentenceCompleteHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sentenceComplete = h
}

func (r *HookRegistry) SetTranscriptUpdate(h TranscriptUpdateHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriptUpdate = h
}

func (r *HookRegistry) SetUtteranceEnd(h UtteranceEndHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.utteranceEnd = h
}

func (r *HookRegistry) SetError(h ErrorHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = h
}

func (r *HookRegistry) sentenceCompleted(ev SentenceCompletion) {
	r.mu.RLock()
	h := r.sentenceComplete
	r.mu.RUnlock()
	if h == nil {
		return
	}
	r.invoke(HookSentenceComplete, func() error { return h.OnSentenceComplete(ev) })
}

func (r *HookRegistry) transcriptUpdated(ev TranscriptUpdate) {
	r.mu.RLock()
	h := r.transcriptUpdate
	r.mu.RUnlock()
	if h == nil {
		return
	}
	r.invoke(HookTranscriptUpdate, func() error { return h.OnTranscriptUpdate(ev) })
}

func (r *HookRegistry) utteranceEnded(ev UtteranceCompletion) {
	r.mu.RLock()
	h := r.utteranceEnd
	r.mu.RUnlock()
	if h == nil {
		return
	}
	r.invoke(HookUtteranceEnd, func() error { return h.OnUtteranceEnd(ev) })
}

// invoke runs fn, converting a returned error or a panic into a
// HookExecutionError that is logged and forwarded to the error hook.
func (r *HookRegistry) invoke(hook string, fn func() error) {
	err := safeCall(fn)
	if err == nil {
		return
	}

	herr := &HookExecutionError{SessionID: r.sessionID, Hook: hook, Err: err}
	r.log.Error().
		Err(err).
		Str("hook", hook).
		Msg("Hook execution failed")
	if r.metrics != nil {
		r.metrics.RecordHookError(hook)
	}
	r.reportError(herr)
}

// reportError forwards err to the error hook. A failing error hook is logged
// and otherwise ignored.
func (r *HookRegistry) reportError(err error) {
	r.mu.RLock()
	h := r.onError
	r.mu.RUnlock()
	if h == nil {
		return
	}

	if perr := safeCall(func() error { h.OnError(err); return nil }); perr != nil {
		r.log.Error().
			Err(perr).
			Str("hook", HookError).
			Msg("Error hook failed")
		if r.metrics != nil {
			r.metrics.RecordHookError(HookError)
		}
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}
