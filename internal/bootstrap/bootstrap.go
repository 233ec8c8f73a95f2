package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/collision-fault-assistant/internal/config"
	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/core/ports"
	"github.com/kirillkom/collision-fault-assistant/internal/core/usecase"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/inference"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/inference/aiserver"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/inference/gemini"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/inference/ollama"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/inference/openai"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/lock"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/collision-fault-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/collision-fault-assistant/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Evaluation  *usecase.EvaluationUseCase
	HTTPMetrics *metrics.HTTPServerMetrics

	closeFns []func()
}

// New wires the orchestrator with its store, storage, gateway, optional locker
// and optional event publisher.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	app := &App{
		Config:      cfg,
		HTTPMetrics: metrics.NewHTTPServerMetrics(service),
	}
	ready := false
	defer func() {
		if !ready {
			app.Close()
		}
	}()

	if cfg.MigrateOnStartup {
		if err := postgres.MigrateUp(cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.onClose(func() { _ = db.Close() })

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	inferenceMetrics := metrics.NewInferenceMetrics(service, app.HTTPMetrics.Registerer())
	gateway, err := app.buildGateway(ctx, cfg, inferenceMetrics)
	if err != nil {
		return nil, err
	}

	uc := usecase.NewEvaluationUseCase(
		postgres.NewUserRepository(db),
		postgres.NewAnalysisRepository(db),
		postgres.NewVideoRepository(db),
		postgres.NewQueryRepository(db),
		storage,
		gateway,
		domain.EvaluationLimits{
			AccidentType:     cfg.DefaultAccidentType,
			InferenceTimeout: cfg.InferenceTimeout(),
		},
	)

	locker, err := app.buildLocker(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if locker != nil {
		uc.WithAnalysisLocker(locker)
	}

	if cfg.NATSURL != "" {
		bus, err := ConnectEvents(cfg)
		if err != nil {
			return nil, err
		}
		app.onClose(bus.Close)
		uc.WithEventPublisher(bus)
	} else {
		slog.Info("event_publisher_disabled", "reason", "NATS_URL is empty")
	}

	app.Evaluation = uc
	ready = true
	return app, nil
}

// ConnectEvents opens the NATS event bus with retrying publishes.
func ConnectEvents(cfg config.Config) (*nats.EventBus, error) {
	bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("init event bus: %w", err)
	}
	return bus, nil
}

func (a *App) buildGateway(ctx context.Context, cfg config.Config, m *metrics.InferenceMetrics) (ports.InferenceGateway, error) {
	policy := resilience.DefaultConfig()
	policy.BreakerEnabled = cfg.BreakerEnabled
	executor := resilience.NewExecutor(
		resilience.InferenceConfig(policy),
		resilience.WithStateObserver(func(operation string, _, to gobreaker.State) {
			m.SetCircuitOpen(operation, to == gobreaker.StateOpen)
		}),
	)

	var primary ports.InferenceGateway
	switch cfg.InferenceBackend {
	case "gemini":
		g, err := gemini.New(ctx, gemini.Config{
			APIKey:        cfg.GeminiAPIKey,
			VideoModel:    cfg.GeminiVideoModel,
			TextModel:     cfg.GeminiTextModel,
			MaxVideoBytes: cfg.MaxUploadBytes,
		}, executor)
		if err != nil {
			return nil, fmt.Errorf("init gemini gateway: %w", err)
		}
		a.onClose(func() { _ = g.Close() })
		primary = g
	default:
		primary = aiserver.New(cfg.AIServerURL, cfg.InferenceTimeout(), executor)
	}

	switch cfg.FollowupBackend {
	case "openai":
		responder, err := openai.NewFollowupResponder(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}, executor)
		if err != nil {
			return nil, fmt.Errorf("init openai follow-up: %w", err)
		}
		primary = inference.NewRouted(primary, responder)
	case "ollama":
		responder, err := ollama.NewFollowupResponder(ollama.Config{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
			Timeout: cfg.InferenceTimeout(),
		}, executor)
		if err != nil {
			return nil, fmt.Errorf("init ollama follow-up: %w", err)
		}
		primary = inference.NewRouted(primary, responder)
	}

	slog.Info("inference_gateway_ready",
		"backend", cfg.InferenceBackend,
		"followup_backend", cfg.FollowupBackend,
		"breaker_enabled", cfg.BreakerEnabled,
	)
	return inference.NewInstrumented(primary, m), nil
}

func (a *App) buildLocker(ctx context.Context, cfg config.Config) (ports.AnalysisLocker, error) {
	switch cfg.LockBackend {
	case "local":
		return lock.NewLocal(), nil
	case "redis":
		client, err := lock.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis lock: %w", err)
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.onClose(func() { _ = client.Close() })
		return lock.NewRedis(client, cfg.LockTTL()), nil
	default:
		return nil, nil
	}
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
