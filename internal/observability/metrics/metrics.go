// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "acta_transcript"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsOpened  prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsClosed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// Engine metrics
	TranscriptsFinal     prometheus.Counter
	TranscriptsInterim   prometheus.Counter
	DuplicatesSuppressed prometheus.Counter
	EventsDropped        *prometheus.CounterVec
	SentencesFinalized   *prometheus.CounterVec
	SentenceWords        prometheus.Histogram
	Utterances           prometheus.Counter
	HookErrors           *prometheus.CounterVec
	ProviderErrors       prometheus.Counter

	// Broadcast metrics
	BroadcastTotal      *prometheus.CounterVec
	BroadcastErrors     *prometheus.CounterVec
	InterimThrottled    prometheus.Counter
	WebsocketClients    prometheus.Gauge
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Audio ingress metrics
	StreamsTotal        prometheus.Counter
	StreamsActive       prometheus.Gauge
	StreamsFailed       prometheus.Counter
	StreamDuration      prometheus.Histogram
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter
	StreamLimitExceeded *prometheus.CounterVec
	STTErrors           *prometheus.CounterVec

	// API metrics
	GRPCRequests *prometheus.CounterVec
	GRPCDuration *prometheus.HistogramVec
	HTTPRequests *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Total number of transcript sessions opened",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently open transcript sessions",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Total number of transcript sessions closed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Lifetime of transcript sessions in seconds",
			Buckets:   []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
		}),

		// Engine metrics
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final fragments accepted",
		}),
		TranscriptsInterim: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_interim_total",
			Help:      "Total number of interim fragments accepted",
		}),
		DuplicatesSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_suppressed_total",
			Help:      "Total number of re-delivered final fragments discarded",
		}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of inbound events dropped",
		}, []string{"reason"}),
		SentencesFinalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentences_finalized_total",
			Help:      "Total number of sentences finalized",
		}, []string{"trigger"}),
		SentenceWords: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sentence_words",
			Help:      "Word count of finalized sentences",
			Buckets:   []float64{1, 3, 5, 10, 20, 40, 80},
		}),
		Utterances: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Total number of utterance-end signals handled",
		}),
		HookErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_errors_total",
			Help:      "Total number of failed hook invocations",
		}, []string{"hook"}),
		ProviderErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Total number of provider-reported errors",
		}),

		// Broadcast metrics
		BroadcastTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_total",
			Help:      "Total number of events forwarded to the sink",
		}, []string{"family"}),
		BroadcastErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_errors_total",
			Help:      "Total number of sink failures",
		}, []string{"family"}),
		InterimThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interim_throttled_total",
			Help:      "Total number of interim broadcasts suppressed by the throttle",
		}),
		WebsocketClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Number of connected WebSocket subscribers",
		}),
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "family"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "family"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Audio ingress metrics
		StreamsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of audio and gRPC streams started",
		}),
		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active streams",
		}),
		StreamsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_failed_total",
			Help:      "Total number of failed streams",
		}),
		StreamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 1800},
		}),
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),
		StreamLimitExceeded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_limit_exceeded_total",
			Help:      "Total number of times audio stream limits were exceeded",
		}, []string{"limit_type"}),
		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT adapter errors",
		}, []string{"provider"}),

		// API metrics
		GRPCRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total gRPC calls by method and status code",
		}, []string{"method", "code"}),
		GRPCDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP API requests by route and status",
		}, []string{"route", "status"}),
	}
}

// RecordSessionOpened records a new session.
func (m *Metrics) RecordSessionOpened() {
	m.SessionsOpened.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionClosed records a session leaving the registry.
func (m *Metrics) RecordSessionClosed(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionsClosed.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordFinal records an accepted final fragment.
func (m *Metrics) RecordFinal() {
	m.TranscriptsFinal.Inc()
}

// RecordInterim records an accepted interim fragment.
func (m *Metrics) RecordInterim() {
	m.TranscriptsInterim.Inc()
}

// RecordDuplicate records a suppressed re-delivery.
func (m *Metrics) RecordDuplicate() {
	m.DuplicatesSuppressed.Inc()
}

// RecordDropped records an inbound event that was not processed.
func (m *Metrics) RecordDropped(reason string) {
	m.EventsDropped.WithLabelValues(reason).Inc()
}

// RecordSentence records a finalized sentence and what triggered it.
func (m *Metrics) RecordSentence(trigger string, words int) {
	m.SentencesFinalized.WithLabelValues(trigger).Inc()
	m.SentenceWords.Observe(float64(words))
}

// RecordUtterance records an utterance boundary.
func (m *Metrics) RecordUtterance() {
	m.Utterances.Inc()
}

// RecordHookError records a failed hook.
func (m *Metrics) RecordHookError(hook string) {
	m.HookErrors.WithLabelValues(hook).Inc()
}

// RecordProviderError records a provider-reported error.
func (m *Metrics) RecordProviderError() {
	m.ProviderErrors.Inc()
}

// RecordBroadcast records a sink publish attempt.
func (m *Metrics) RecordBroadcast(family string, err error) {
	m.BroadcastTotal.WithLabelValues(family).Inc()
	if err != nil {
		m.BroadcastErrors.WithLabelValues(family).Inc()
	}
}

// RecordInterimThrottled records a suppressed interim broadcast.
func (m *Metrics) RecordInterimThrottled() {
	m.InterimThrottled.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, family string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, family).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, family).Inc()
	}
}

// RecordStreamStart records a new stream starting.
func (m *Metrics) RecordStreamStart() {
	m.StreamsTotal.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd records a stream ending.
func (m *Metrics) RecordStreamEnd(success bool, durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
	if !success {
		m.StreamsFailed.Inc()
	}
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordLimitExceeded records when a stream limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.StreamLimitExceeded.WithLabelValues(limitType).Inc()
}

// RecordSTTError records an STT adapter error.
func (m *Metrics) RecordSTTError(provider string) {
	m.STTErrors.WithLabelValues(provider).Inc()
}

// RecordGRPC records a completed gRPC call.
func (m *Metrics) RecordGRPC(method, code string, durationSeconds float64) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
	m.GRPCDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordHTTP records a completed HTTP API request.
func (m *Metrics) RecordHTTP(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
