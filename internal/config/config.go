package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"acta-transcript-engine/internal/events"
	"acta-transcript-engine/internal/models"
)

type Config struct {
	Service       ServiceConfig
	Kafka         KafkaConfig
	STT           STTConfig
	Session       models.SessionConfig
	Engine        EngineConfig
	StreamLimits  StreamLimitsConfig
	Insights      InsightsConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	GRPCPort    string
	MetricsAddr string
}

type KafkaConfig struct {
	Enabled   bool
	Brokers   []string
	Topics    map[models.Family]string
	Principal string
}

type STTConfig struct {
	Provider string
}

type EngineConfig struct {
	ForcedFinalizeConfidence float64
	InterimInterval          time.Duration
}

// StreamLimitsConfig bounds a single audio ingress stream.
type StreamLimitsConfig struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
}

type InsightsConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Enabled reports whether post-session insights can be generated.
func (c InsightsConfig) Enabled() bool {
	return c.APIKey != ""
}

type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-transcript-engine")
	defaultTopics := events.DefaultTopics()

	return &Config{
		Service: ServiceConfig{
			Principal:   principal,
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
		Kafka: KafkaConfig{
			Enabled: envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers: envList("KAFKA_BROKERS"),
			Topics: map[models.Family]string{
				models.FamilyStatus:            envOrDefault("KAFKA_TOPIC_STATUS", defaultTopics[models.FamilyStatus]),
				models.FamilyTranscriptInterim: envOrDefault("KAFKA_TOPIC_INTERIM", defaultTopics[models.FamilyTranscriptInterim]),
				models.FamilyTranscriptFinal:   envOrDefault("KAFKA_TOPIC_FINAL", defaultTopics[models.FamilyTranscriptFinal]),
				models.FamilySentenceComplete:  envOrDefault("KAFKA_TOPIC_SENTENCE", defaultTopics[models.FamilySentenceComplete]),
				models.FamilyUtteranceEnd:      envOrDefault("KAFKA_TOPIC_UTTERANCE", defaultTopics[models.FamilyUtteranceEnd]),
			},
			Principal: envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		STT: STTConfig{
			Provider: envOrDefault("STT_PROVIDER", "mock"),
		},
		Session: loadSessionDefaults(),
		Engine: EngineConfig{
			ForcedFinalizeConfidence: envOrDefaultUnit("ENGINE_FORCED_FINALIZE_CONFIDENCE", 0.9),
			InterimInterval:          envOrDefaultDuration("BROADCAST_INTERIM_INTERVAL", 250*time.Millisecond),
		},
		StreamLimits: StreamLimitsConfig{
			MaxAudioBytes: envOrDefaultInt64("STREAM_MAX_AUDIO_BYTES", 50*1024*1024),
			MaxDuration:   envOrDefaultDuration("STREAM_MAX_DURATION", 4*time.Hour),
		},
		Insights: InsightsConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

// loadSessionDefaults layers built-in defaults, the optional YAML file and
// SESSION_* variables, later layers winning.
func loadSessionDefaults() models.SessionConfig {
	base := models.DefaultSessionConfig()
	base.Model = "nova-2"
	base.Language = "en-US"
	base.SampleRate = 16000
	base.Encoding = "LINEAR16"
	base.Channels = 1

	if path := os.Getenv("SESSION_DEFAULTS_FILE"); path != "" {
		fromFile, err := readSessionFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Ignoring session defaults file")
		} else {
			base = fromFile.WithDefaults(base)
		}
	}

	return models.SessionConfig{
		Model:                 envOrDefault("SESSION_MODEL", base.Model),
		Language:              envOrDefault("SESSION_LANGUAGE", base.Language),
		UtteranceSilenceMs:    envOrDefaultInt("SESSION_UTTERANCE_SILENCE_MS", base.UtteranceSilenceMs),
		InterimResultsEnabled: models.Bool(envOrDefaultBool("SESSION_INTERIM_RESULTS", models.Enabled(base.InterimResultsEnabled))),
		SmartFormat:           models.Bool(envOrDefaultBool("SESSION_SMART_FORMAT", models.Enabled(base.SmartFormat))),
		Punctuate:             models.Bool(envOrDefaultBool("SESSION_PUNCTUATE", models.Enabled(base.Punctuate))),
		Diarize:               models.Bool(envOrDefaultBool("SESSION_DIARIZE", models.Enabled(base.Diarize))),
		SampleRate:            envOrDefaultInt("SESSION_SAMPLE_RATE_HZ", base.SampleRate),
		Encoding:              envOrDefault("SESSION_AUDIO_ENCODING", base.Encoding),
		Channels:              envOrDefaultInt("SESSION_CHANNELS", base.Channels),
	}
}

func readSessionFile(path string) (models.SessionConfig, error) {
	var cfg models.SessionConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envOrDefaultInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// envOrDefaultUnit reads a float that must lie in [0,1], such as a confidence.
func envOrDefaultUnit(key string, def float64) float64 {
	f := envOrDefaultFloat(key, def)
	if math.IsNaN(f) || f < 0 || f > 1 {
		return def
	}
	return f
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
