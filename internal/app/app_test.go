package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"acta-transcript-engine/internal/config"
	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/service/stt"
	"acta-transcript-engine/internal/service/stt/mock"
)

func testConfig() *config.Config {
	return &config.Config{
		STT:     config.STTConfig{Provider: "mock"},
		Session: models.DefaultSessionConfig(),
		Engine:  config.EngineConfig{ForcedFinalizeConfidence: 0.8},
		StreamLimits: config.StreamLimitsConfig{
			MaxAudioBytes: 1 << 20,
			MaxDuration:   time.Hour,
		},
		Observability: config.ObservabilityConfig{LogLevel: "error"},
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.STT.Provider = "whisper"

	if _, err := New(cfg); !errors.Is(err, stt.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewSTTFactory(t *testing.T) {
	f, err := NewSTTFactory("mock")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	adapter, err := f(context.Background(), models.SessionConfig{})
	if err != nil {
		t.Fatalf("unexpected adapter error: %v", err)
	}
	if _, ok := adapter.(*mock.Adapter); !ok {
		t.Errorf("expected mock adapter, got %T", adapter)
	}

	if _, err := NewSTTFactory("google"); err != nil {
		t.Errorf("expected google factory, got %v", err)
	}
}

func TestApplication_Lifecycle(t *testing.T) {
	a, err := New(testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Insights != nil {
		t.Error("expected insights disabled without an API key")
	}
	if a.Ready() {
		t.Error("expected not ready before Start")
	}
	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !a.Ready() {
		t.Error("expected ready after Start")
	}

	if _, err := a.Controller.Open("m1", models.SessionConfig{}); err != nil {
		t.Fatalf("open: %v", err)
	}

	stream, err := a.OpenStream(context.Background(), "m1")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if err := stream.Start(context.Background()); err != nil {
		t.Fatalf("stream start: %v", err)
	}
	// One interim frame; the interrupted utterance's finals arrive on close.
	if err := stream.SendAudio(context.Background(), make([]byte, 320)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("stream close: %v", err)
	}

	summaries := a.Shutdown(context.Background())
	if a.Ready() {
		t.Error("expected not ready after Shutdown")
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if got := summaries[0].FullTranscript; got != "Good morning everyone. Let's get started." {
		t.Errorf("unexpected transcript %q", got)
	}
	if a.Controller.Len() != 0 {
		t.Error("expected no sessions after shutdown")
	}
}

func TestApplication_OpenStreamUnknownSession(t *testing.T) {
	a, err := New(testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.OpenStream(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestApplication_AnalyzeDisabled(t *testing.T) {
	a, err := New(testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ins, err := a.Analyze(context.Background(), models.Summary{FullTranscript: "hello"})
	if err != nil || ins != nil {
		t.Errorf("expected no insights and no error, got %v, %v", ins, err)
	}
}
