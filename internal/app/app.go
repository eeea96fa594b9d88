package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"acta-transcript-engine/internal/config"
	"acta-transcript-engine/internal/events"
	"acta-transcript-engine/internal/insights"
	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/observability/logging"
	"acta-transcript-engine/internal/observability/metrics"
	"acta-transcript-engine/internal/service/audio"
	"acta-transcript-engine/internal/service/broadcast"
	"acta-transcript-engine/internal/service/stt"
	"acta-transcript-engine/internal/service/stt/google"
	"acta-transcript-engine/internal/service/stt/mock"
	"acta-transcript-engine/internal/service/transcript"
)

// recentEventsPerSession bounds the in-memory history served by the API.
const recentEventsPerSession = 500

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Controller *transcript.Controller
	Relay      *broadcast.Relay
	Hub        *broadcast.Hub
	Recorder   *broadcast.Recorder
	Publisher  *events.Publisher
	Insights   *insights.Extractor // nil when no API key is configured
	STT        stt.Factory
	Metrics    *metrics.Metrics

	ready atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) (*Application, error) {
	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.DefaultMetrics,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	factory, err := NewSTTFactory(cfg.STT.Provider)
	if err != nil {
		return nil, err
	}
	a.STT = factory

	a.Publisher = events.New(&events.Config{
		Brokers:   cfg.Kafka.Brokers,
		Topics:    cfg.Kafka.Topics,
		Principal: cfg.Kafka.Principal,
		Enabled:   cfg.Kafka.Enabled,
	})
	a.Hub = broadcast.NewHub()
	a.Recorder = broadcast.NewRecorder(recentEventsPerSession)
	a.Relay = broadcast.NewRelay(
		[]broadcast.Sink{a.Recorder, a.Hub, a.Publisher},
		broadcast.WithInterimInterval(cfg.Engine.InterimInterval),
		broadcast.WithMetrics(a.Metrics),
	)
	a.Controller = transcript.NewController(a.Relay,
		transcript.WithForcedConfidence(cfg.Engine.ForcedFinalizeConfidence),
		transcript.WithDefaults(cfg.Session),
		transcript.WithMetrics(a.Metrics),
		transcript.WithHookInstaller(a.installErrorLogging),
	)

	if cfg.Insights.Enabled() {
		a.Insights = insights.New(insights.Config{
			APIKey:  cfg.Insights.APIKey,
			Model:   cfg.Insights.Model,
			BaseURL: cfg.Insights.BaseURL,
		})
	}

	appLogger.Info().
		Str("sttProvider", cfg.STT.Provider).
		Bool("kafkaEnabled", cfg.Kafka.Enabled).
		Bool("insightsEnabled", a.Insights != nil).
		Dur("interimInterval", cfg.Engine.InterimInterval).
		Msg("Transcript engine application created")
	return a, nil
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:  a.Cfg.Observability.LogLevel,
		Format: a.Cfg.Observability.LogFormat,
	})
	a.Logger = logging.WithComponent("application")

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", a.Cfg.Observability.LogFormat).
		Msg("Logger setup completed")
}

// installErrorLogging gives every new session an error hook that logs
// provider and hook failures. Callers may replace it through Hooks.
func (a *Application) installErrorLogging(sessionID string, hooks *transcript.HookRegistry) {
	sessLog := logging.WithSession(sessionID)
	hooks.SetError(transcript.ErrorFunc(func(err error) {
		sessLog.Error().Err(err).Msg("Session error")
	}))
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Transcript engine starting")

	return nil
}

// Ready reports whether the application accepts traffic.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// OpenStream creates an audio handler feeding the session's configured
// provider into the controller. The caller owns Start and Close.
func (a *Application) OpenStream(ctx context.Context, sessionID string) (*audio.Handler, error) {
	snap, err := a.Controller.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	adapter, err := a.STT(ctx, snap.Config)
	if err != nil {
		return nil, fmt.Errorf("create %s adapter: %w", a.Cfg.STT.Provider, err)
	}
	return audio.NewHandlerWithLimits(adapter, a.Controller, sessionID, a.Cfg.STT.Provider, audio.Limits{
		MaxAudioBytes: a.Cfg.StreamLimits.MaxAudioBytes,
		MaxDuration:   a.Cfg.StreamLimits.MaxDuration,
	}), nil
}

// Analyze runs the insights extractor over a closed session's summary.
func (a *Application) Analyze(ctx context.Context, summary models.Summary) (*models.Insights, error) {
	if a.Insights == nil {
		return nil, nil
	}
	out, err := a.Insights.Extract(ctx, summary)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Shutdown closes every live session, flushing pending text, then the
// Kafka writers. It returns the final summaries.
func (a *Application) Shutdown(ctx context.Context) []models.Summary {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	summaries := a.Controller.CloseAll(ctx)
	if err := a.Publisher.Close(); err != nil {
		shutdownLogger.Error().Err(err).Msg("Kafka publisher close failed")
	}

	shutdownLogger.Info().
		Int("sessionsClosed", len(summaries)).
		Msg("Transcript engine shut down")
	return summaries
}

// NewSTTFactory returns the adapter factory for a provider name.
func NewSTTFactory(provider string) (stt.Factory, error) {
	switch provider {
	case "mock":
		return func(ctx context.Context, cfg models.SessionConfig) (stt.Adapter, error) {
			return mock.New(), nil
		}, nil
	case "google":
		return func(ctx context.Context, cfg models.SessionConfig) (stt.Adapter, error) {
			a, err := google.New(ctx, google.ConfigFromSession(cfg))
			if err != nil {
				return nil, err
			}
			return a, nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", stt.ErrUnknownProvider, provider)
	}
}
