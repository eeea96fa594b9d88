package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"

	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/observability/metrics"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if len(p.writers) != 0 {
				t.Errorf("expected no writers when disabled, got %d", len(p.writers))
			}
		})
	}
}

func TestNew_TopicOverrides(t *testing.T) {
	p := New(&Config{
		Enabled:   false,
		Principal: "test-principal",
		Topics: map[models.Family]string{
			models.FamilyTranscriptFinal: "test.final",
			models.FamilyStatus:          "",
		},
	})

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if got := p.Topic(models.FamilyTranscriptFinal); got != "test.final" {
		t.Errorf("expected override 'test.final', got %s", got)
	}
	if got := p.Topic(models.FamilyStatus); got != DefaultTopics()[models.FamilyStatus] {
		t.Errorf("expected empty override to keep default, got %s", got)
	}
	for _, f := range models.Families {
		if p.Topic(f) == "" {
			t.Errorf("expected a topic for family %s", f)
		}
	}
}

func TestNew_EnabledCreatesWriterPerFamily(t *testing.T) {
	p := New(&Config{Enabled: true, Brokers: []string{"localhost:9092"}})

	if !p.enabled {
		t.Fatal("expected publisher to be enabled")
	}
	if len(p.writers) != len(models.Families) {
		t.Errorf("expected %d writers, got %d", len(models.Families), len(p.writers))
	}
	for _, f := range models.Families {
		w := p.writers[f]
		if w == nil {
			t.Fatalf("missing writer for %s", f)
		}
		if w.Topic != p.Topic(f) {
			t.Errorf("writer for %s targets %s, expected %s", f, w.Topic, p.Topic(f))
		}
		if !w.Async || w.Completion == nil {
			t.Errorf("writer for %s must be async with a completion callback", f)
		}
	}
	if err := p.Close(); err != nil {
		t.Errorf("expected clean close of idle writers, got %v", err)
	}
}

func TestPublisher_Publish_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, Principal: "test-svc"})

	events := []models.Event{
		models.Status{EventType: "status", SessionID: "m1", State: models.StateConnected},
		models.TranscriptInterim{EventType: "transcript-interim", SessionID: "m1", Text: "hello"},
		models.TranscriptFinal{EventType: "transcript-final", SessionID: "m1", Text: "hello.", Confidence: 0.9},
		models.SentenceComplete{EventType: "sentence-complete", SessionID: "m1", SentenceNumber: 1},
		models.UtteranceEnd{EventType: "utterance-end", SessionID: "m1"},
	}
	for _, ev := range events {
		if err := p.Publish(context.Background(), ev); err != nil {
			t.Errorf("%s: expected no error when disabled, got %v", ev.EventFamily(), err)
		}
	}
}

type oddEvent struct {
	family models.Family
	Ch     chan int `json:"ch"`
}

func (e oddEvent) EventFamily() models.Family { return e.family }
func (e oddEvent) Session() string            { return "m1" }

func TestPublisher_Publish_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.Publish(context.Background(), oddEvent{family: models.FamilyStatus, Ch: make(chan int)})
	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Publish_UnknownFamily(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.Publish(context.Background(), oddEvent{family: "diagnostics"})
	if err == nil {
		t.Error("expected error for family without topic")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}

	empty := &Publisher{}
	if err := empty.Close(); err != nil {
		t.Errorf("expected no error closing zero publisher, got %v", err)
	}
}

func TestPublisher_Publish_DoesNotWaitForDelivery(t *testing.T) {
	p := New(&Config{Enabled: true, Brokers: []string{"127.0.0.1:1"}})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_ = p.Publish(ctx, models.TranscriptInterim{EventType: "transcript-interim", SessionID: "m1", Text: "hi"})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("publish to unreachable broker took %v", elapsed)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestCompletion_RecordsBatchOutcome(t *testing.T) {
	const topic = "completion.test.final"
	m := metrics.DefaultMetrics
	family := string(models.FamilyTranscriptFinal)
	done := completion(m, topic, models.FamilyTranscriptFinal)

	msgs := []kafka.Message{
		{Key: []byte("m1"), Time: time.Now()},
		{Key: []byte("m1"), Time: time.Now()},
	}
	done(msgs, errors.New("broker unavailable"))
	done(msgs, nil)
	done(nil, nil)

	if got := counterValue(t, m.KafkaPublishTotal.WithLabelValues(topic, family)); got != 4 {
		t.Errorf("expected 4 publishes recorded, got %v", got)
	}
	if got := counterValue(t, m.KafkaPublishErrors.WithLabelValues(topic, family)); got != 2 {
		t.Errorf("expected 2 errors recorded, got %v", got)
	}
}
