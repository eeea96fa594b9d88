// Package events publishes transcript events to Kafka, one topic per
// broadcast family.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/observability/metrics"
)

// Publisher writes each event to the topic configured for its family, keyed
// by session id so one session's events stay ordered within a partition.
type Publisher struct {
	writers   map[models.Family]*kafka.Writer
	topics    map[models.Family]string
	principal string
	enabled   bool
	metrics   *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers   []string
	Topics    map[models.Family]string
	Principal string
	Enabled   bool
}

// DefaultTopics returns the topic used for each family when none is set.
func DefaultTopics() map[models.Family]string {
	return map[models.Family]string{
		models.FamilyStatus:            "meeting.transcript.status",
		models.FamilyTranscriptInterim: "meeting.transcript.interim",
		models.FamilyTranscriptFinal:   "meeting.transcript.final",
		models.FamilySentenceComplete:  "meeting.transcript.sentence",
		models.FamilyUtteranceEnd:      "meeting.transcript.utterance",
	}
}

// New creates a Kafka event publisher. A nil or disabled config, or one
// without brokers, yields a log-only publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{topics: DefaultTopics(), metrics: m}
	}

	topics := DefaultTopics()
	for family, topic := range cfg.Topics {
		if topic != "" {
			topics[family] = topic
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			topics:    topics,
			principal: cfg.Principal,
			metrics:   m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writers := make(map[models.Family]*kafka.Writer, len(topics))
	for family, topic := range topics {
		writers[family] = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion:   completion(m, topic, family),
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Interface("topics", topics).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writers:   writers,
		topics:    topics,
		principal: cfg.Principal,
		enabled:   true,
		metrics:   m,
	}
}

// completion records the outcome of an async batch. Messages carry their
// enqueue time so latency spans the whole delivery.
func completion(m *metrics.Metrics, topic string, family models.Family) func([]kafka.Message, error) {
	return func(messages []kafka.Message, err error) {
		if err != nil {
			log.Error().
				Err(err).
				Str("topic", topic).
				Int("messages", len(messages)).
				Msg("Failed to write to Kafka")
		}
		for _, msg := range messages {
			m.RecordKafkaPublish(topic, string(family), err, time.Since(msg.Time).Seconds())
		}
	}
}

// Topic returns the topic configured for a family.
func (p *Publisher) Topic(f models.Family) string {
	return p.topics[f]
}

// Publish enqueues ev on its family's topic. Delivery is asynchronous; only
// metadata lookup and enqueue failures are returned.
func (p *Publisher) Publish(ctx context.Context, ev models.Event) error {
	start := time.Now()
	family := ev.EventFamily()
	topic, ok := p.topics[family]
	if !ok {
		return fmt.Errorf("no topic for event family %q", family)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", ev.Session()).
		RawJSON("payload", payload).
		Msg("Publishing event")

	writer := p.writers[family]
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, string(family), nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(ev.Session()),
		Value: payload,
		Time:  start,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(family)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", ev.Session()).
			Msg("Failed to enqueue Kafka message")
		p.metrics.RecordKafkaPublish(topic, string(family), err, time.Since(start).Seconds())
		return err
	}
	return nil
}

// Close flushes pending batches and closes every Kafka writer.
func (p *Publisher) Close() error {
	var err error
	for family, w := range p.writers {
		if e := w.Close(); e != nil {
			log.Error().Err(e).Str("family", string(family)).Msg("Error closing Kafka writer")
			err = e
		}
	}
	return err
}
