// Package mock provides a scripted STT adapter for running without cloud
// credentials. Each audio frame advances a meeting script of interim
// previews, punctuated final fragments and utterance ends.
package mock

import (
	"context"
	"sync"
	"time"

	"acta-transcript-engine/internal/service/stt"
)

// Utterance is one scripted stretch of speech between two pauses.
type Utterance struct {
	Interims   []string // progressive previews, one per audio frame
	Finals     []string // confirmed fragments, delivered together
	Confidence float64
	Speaker    string
}

// DefaultScript is a short stand-up meeting. The second utterance ends
// without terminal punctuation so the pause forces its sentence out.
var DefaultScript = []Utterance{
	{
		Interims:   []string{"Good", "Good morning", "Good morning everyone"},
		Finals:     []string{"Good morning everyone.", "Let's get started."},
		Confidence: 0.96,
		Speaker:    "speaker_1",
	},
	{
		Interims:   []string{"Yesterday I", "Yesterday I finished", "Yesterday I finished the"},
		Finals:     []string{"Yesterday I finished", "the billing migration"},
		Confidence: 0.91,
		Speaker:    "speaker_2",
	},
	{
		Interims:   []string{"Any", "Any blockers"},
		Finals:     []string{"Any blockers?"},
		Confidence: 0.88,
		Speaker:    "speaker_1",
	},
	{
		Interims:   []string{"None", "None from me"},
		Finals:     []string{"None from me, thanks!"},
		Confidence: 0.93,
		Speaker:    "speaker_2",
	},
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithScript replaces DefaultScript.
func WithScript(script []Utterance) Option {
	return func(a *Adapter) {
		if len(script) > 0 {
			a.script = script
		}
	}
}

// WithLatency delays every callback to simulate provider processing time.
func WithLatency(d time.Duration) Option {
	return func(a *Adapter) {
		a.latency = d
	}
}

// Adapter implements stt.Adapter. Results are delivered synchronously from
// SendAudio and Close, so callback order follows the script exactly.
type Adapter struct {
	script  []Utterance
	latency time.Duration

	mu            sync.Mutex
	cb            stt.Callback
	audioReceived int
	utterance     int // index into script
	interim       int // next interim of the current utterance
	closed        bool
}

// New creates a mock STT adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{script: DefaultScript}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start begins a mock transcription session.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	return nil
}

// SendAudio advances the script by one step: the next interim, or when the
// current utterance has none left, its finals followed by an utterance end.
// The script loops.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if a.closed || a.cb == nil {
		a.mu.Unlock()
		return nil
	}
	a.audioReceived++
	cb := a.cb
	utt := a.script[a.utterance]

	var emit func()
	if a.interim < len(utt.Interims) {
		text := utt.Interims[a.interim]
		a.interim++
		emit = func() {
			cb.OnTranscript(stt.Result{Text: text, Speaker: utt.Speaker})
		}
	} else {
		a.interim = 0
		a.utterance = (a.utterance + 1) % len(a.script)
		emit = func() {
			for _, text := range utt.Finals {
				cb.OnTranscript(stt.Result{Text: text, IsFinal: true, Confidence: utt.Confidence, Speaker: utt.Speaker})
			}
			cb.OnEndOfUtterance()
		}
	}
	a.mu.Unlock()

	a.sleep(ctx)
	emit()
	return nil
}

// Close ends the mock session. An utterance interrupted mid-way still gets
// its finals, without an utterance end.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cb := a.cb
	utt := a.script[a.utterance]
	interrupted := a.interim > 0
	a.mu.Unlock()

	if cb != nil && interrupted {
		for _, text := range utt.Finals {
			cb.OnTranscript(stt.Result{Text: text, IsFinal: true, Confidence: utt.Confidence, Speaker: utt.Speaker})
		}
	}
	return nil
}

// AudioFrames returns how many audio frames were received.
func (a *Adapter) AudioFrames() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.audioReceived
}

func (a *Adapter) sleep(ctx context.Context) {
	if a.latency <= 0 {
		return
	}
	t := time.NewTimer(a.latency)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
