package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/steam-game-recommender/internal/config"
	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/core/ports"
	"github.com/kirillkom/steam-game-recommender/internal/core/usecase"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/catalog/cache"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/catalog/steam"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/queue/nats"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/resilience"
	"github.com/kirillkom/steam-game-recommender/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Pipeline *usecase.RecommendationPipeline
	Catalog  *usecase.CatalogService

	// Queue is set when the process talks to NATS.
	Queue *nats.Queue
	// Dispatcher is set when recommendation runs go to remote workers.
	Dispatcher ports.RecommendDispatcher

	closeFn func()
}

type Options struct {
	// Metrics receives pipeline and cache measurements; nil disables them.
	Metrics *metrics.PipelineMetrics
	// ConnectQueue forces a NATS connection even when dispatch is local (workers).
	ConnectQueue bool
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var telemetry ports.Telemetry = ports.NopTelemetry{}
	var observer cache.LookupObserver
	if opts.Metrics != nil {
		telemetry = opts.Metrics
		observer = opts.Metrics.RecordCacheLookup
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	model, err := NewLanguageModel(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	steamClient := steam.New(steam.Options{
		BaseURL:     cfg.SteamBaseURL,
		Language:    cfg.SteamLanguage,
		CountryCode: cfg.SteamCountryCode,
		Timeout:     cfg.SteamTimeout,
		MaxRetries:  cfg.SteamMaxRetries,
		Logger:      logger,
	})

	var store ports.DetailStore
	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		repo := postgres.NewDetailRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		store = repo
	}

	gateway := cache.New(steamClient, cache.Options{
		Size:     cfg.CacheSize,
		TTL:      cfg.CacheTTL,
		Store:    store,
		Logger:   logger,
		Observer: observer,
	})

	catalog := usecase.NewCatalogService(gateway, usecase.CatalogOptions{
		ListingDelay: cfg.SteamRequestDelay,
		StoreURL:     steamClient.StoreURL,
	}, logger, telemetry)

	pipeline := usecase.NewRecommendationPipeline(
		usecase.NewTextAnalyzer(model, cfg.LLMModel, logger, telemetry),
		catalog,
		usecase.NewScorer(model, cfg.LLMModel, logger, telemetry),
		usecase.RecommendOptions{
			MaxSearchResults: cfg.MaxSearchResults,
			MaxScoreWorkers:  cfg.MaxScoreWorkers,
		},
		logger,
		telemetry,
	)

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Pipeline: pipeline,
		Catalog:  catalog,
	}

	if opts.ConnectQueue || cfg.RecommendDispatch == "nats" {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			RequestTimeout:     cfg.DispatchTimeout,
			MaxConcurrent:      cfg.MaxScoreWorkers,
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig().WithRetries(1), logger),
			Logger:             logger,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		closers = append(closers, queue.Close)
		app.Queue = queue
		if cfg.RecommendDispatch == "nats" {
			app.Dispatcher = queue
		}
	}

	app.closeFn = closeAll
	return app, nil
}

// NewLanguageModel builds the backend named by cfg.LLMProvider.
func NewLanguageModel(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.LanguageModel, error) {
	switch cfg.LLMProvider {
	case "openai", "":
		return openaicompat.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, openaicompat.Options{
			Timeout:    cfg.LLMTimeout,
			MaxRetries: cfg.LLMMaxRetries,
			Logger:     logger,
		}), nil
	case "ollama":
		return ollama.New(cfg.LLMBaseURL, cfg.LLMModel, ollama.Options{
			Timeout:    cfg.LLMTimeout,
			MaxRetries: cfg.LLMMaxRetries,
			Logger:     logger,
		}), nil
	case "gemini":
		client, err := gemini.New(ctx, cfg.LLMAPIKey, cfg.LLMModel, gemini.Options{
			BaseURL:    cfg.LLMBaseURL,
			Timeout:    cfg.LLMTimeout,
			MaxRetries: cfg.LLMMaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "select language model", fmt.Errorf("unknown provider %q", cfg.LLMProvider))
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
