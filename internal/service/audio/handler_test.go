package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/service/broadcast"
	"acta-transcript-engine/internal/service/stt"
	"acta-transcript-engine/internal/service/stt/mock"
	"acta-transcript-engine/internal/service/transcript"
)

// testAdapter implements stt.Adapter for testing
type testAdapter struct {
	started  bool
	closed   int
	audio    [][]byte
	cb       stt.Callback
	startErr error
}

func (m *testAdapter) Start(ctx context.Context, cb stt.Callback) error {
	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	m.cb = cb
	return nil
}

func (m *testAdapter) SendAudio(ctx context.Context, audio []byte) error {
	m.audio = append(m.audio, audio)
	return nil
}

func (m *testAdapter) Close() error {
	m.closed++
	return nil
}

// testDispatcher records every dispatched event.
type testDispatcher struct {
	mu     sync.Mutex
	events []transcript.Event
}

func (d *testDispatcher) Dispatch(id string, ev transcript.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return nil
}

func (d *testDispatcher) statuses() []transcript.ProviderStatusKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []transcript.ProviderStatusKind
	for _, ev := range d.events {
		if st, ok := ev.(transcript.ProviderStatus); ok {
			out = append(out, st.Kind)
		}
	}
	return out
}

func TestHandler_StartReportsConnected(t *testing.T) {
	adapter := &testAdapter{}
	d := &testDispatcher{}
	h := NewHandler(adapter, d, "m1", "test")

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !adapter.started || adapter.cb != h {
		t.Error("expected adapter started with the handler as callback")
	}
	if got := d.statuses(); len(got) != 1 || got[0] != transcript.ProviderConnected {
		t.Errorf("expected connected status, got %v", got)
	}
}

func TestHandler_StartFailure(t *testing.T) {
	adapter := &testAdapter{startErr: errors.New("no credentials")}
	d := &testDispatcher{}
	h := NewHandler(adapter, d, "m1", "test")

	if err := h.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if len(d.statuses()) != 0 {
		t.Error("expected no status on failed start")
	}
}

func TestHandler_MaxAudioBytesLimit(t *testing.T) {
	adapter := &testAdapter{}
	d := &testDispatcher{}
	h := NewHandlerWithLimits(adapter, d, "m1", "test", Limits{MaxAudioBytes: 100, MaxDuration: time.Hour})
	h.Start(context.Background())

	ctx := context.Background()
	if err := h.SendAudio(ctx, make([]byte, 50)); err != nil {
		t.Fatalf("first send should succeed: %v", err)
	}

	err := h.SendAudio(ctx, make([]byte, 60))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if len(adapter.audio) != 1 {
		t.Errorf("expected over-limit audio not forwarded, got %d frames", len(adapter.audio))
	}
	if adapter.closed != 1 {
		t.Errorf("expected adapter closed once, got %d", adapter.closed)
	}

	if err := h.SendAudio(ctx, make([]byte, 1)); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed after limit, got %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("expected no error on close after limit, got %v", err)
	}
	if adapter.closed != 1 {
		t.Errorf("expected adapter still closed once, got %d", adapter.closed)
	}

	got := d.statuses()
	if len(got) != 2 || got[1] != transcript.ProviderClosed {
		t.Errorf("expected connected then closed, got %v", got)
	}
}

func TestHandler_MaxDurationLimit(t *testing.T) {
	adapter := &testAdapter{}
	d := &testDispatcher{}
	h := NewHandlerWithLimits(adapter, d, "m1", "test", Limits{MaxAudioBytes: 1 << 20, MaxDuration: time.Minute})

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	h.Start(context.Background())

	ctx := context.Background()
	if err := h.SendAudio(ctx, []byte("audio")); err != nil {
		t.Fatalf("first send should succeed: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := h.SendAudio(ctx, []byte("audio")); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestHandler_CallbacksBecomeEvents(t *testing.T) {
	d := &testDispatcher{}
	h := NewHandler(&testAdapter{}, d, "m1", "test")

	h.OnTranscript(stt.Result{Text: "hello", Speaker: "s1"})
	h.OnTranscript(stt.Result{Text: "hello.", IsFinal: true, Confidence: 0.9})
	h.OnEndOfUtterance()
	h.OnError(errors.New("stream reset"))

	if len(d.events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(d.events))
	}
	if ev, ok := d.events[0].(transcript.RecognitionEvent); !ok || ev.IsFinal || ev.Speaker != "s1" {
		t.Errorf("unexpected interim event %#v", d.events[0])
	}
	if ev, ok := d.events[1].(transcript.RecognitionEvent); !ok || !ev.IsFinal || ev.Confidence != 0.9 {
		t.Errorf("unexpected final event %#v", d.events[1])
	}
	if _, ok := d.events[2].(transcript.UtteranceEndEvent); !ok {
		t.Errorf("expected utterance end, got %#v", d.events[2])
	}
	if ev, ok := d.events[3].(transcript.ProviderStatus); !ok || ev.Kind != transcript.ProviderFailed || ev.Detail != "stream reset" {
		t.Errorf("unexpected provider status %#v", d.events[3])
	}

	stats := h.Stats()
	if stats.Finals != 1 || stats.Utterances != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestHandler_DefaultLimits(t *testing.T) {
	limits := DefaultLimits()

	if limits.MaxAudioBytes != 50*1024*1024 {
		t.Errorf("expected default max audio bytes to be 50MB, got %d", limits.MaxAudioBytes)
	}
	if limits.MaxDuration != 4*time.Hour {
		t.Errorf("expected default max duration to be 4h, got %v", limits.MaxDuration)
	}
}

func TestHandler_MockStreamBuildsTranscript(t *testing.T) {
	rec := broadcast.NewRecorder(0)
	relay := broadcast.NewRelay([]broadcast.Sink{rec}, broadcast.WithInterimInterval(0))
	ctrl := transcript.NewController(relay)
	if _, err := ctrl.Open("standup", models.SessionConfig{}); err != nil {
		t.Fatalf("open: %v", err)
	}

	script := []mock.Utterance{
		{Interims: []string{"Good", "Good morning"}, Finals: []string{"Good morning.", "Let's start"}, Confidence: 0.9},
		{Interims: []string{"Any"}, Finals: []string{"Any blockers?"}, Confidence: 0.8},
	}
	h := NewHandler(mock.New(mock.WithScript(script)), ctrl, "standup", "mock")
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := h.SendAudio(context.Background(), make([]byte, 320)); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	snap, err := ctrl.Snapshot("standup")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	want := "Good morning. Let's start Any blockers?"
	if snap.FullTranscript != want {
		t.Errorf("expected %q, got %q", want, snap.FullTranscript)
	}
	if len(snap.Sentences) != 3 {
		t.Fatalf("expected 3 sentences, got %d", len(snap.Sentences))
	}
	if snap.Sentences[1].Confidence != transcript.DefaultForcedConfidence {
		t.Errorf("expected pause-forced sentence, got confidence %v", snap.Sentences[1].Confidence)
	}
	if snap.Connected {
		t.Error("expected session disconnected after the stream closed")
	}

	if got := len(rec.Family("standup", models.FamilyTranscriptInterim)); got != 3 {
		t.Errorf("expected 3 interim broadcasts, got %d", got)
	}
	if got := len(rec.Family("standup", models.FamilyUtteranceEnd)); got != 2 {
		t.Errorf("expected 2 utterance-end broadcasts, got %d", got)
	}
}
