package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/steam-game-recommender/internal/adapters/http"
	mcpadapter "github.com/kirillkom/steam-game-recommender/internal/adapters/mcp"
	"github.com/kirillkom/steam-game-recommender/internal/bootstrap"
	"github.com/kirillkom/steam-game-recommender/internal/config"
	"github.com/kirillkom/steam-game-recommender/internal/observability/logging"
	"github.com/kirillkom/steam-game-recommender/internal/observability/metrics"
)

const service = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewLogger(os.Stdout, service, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	pipelineMetrics := metrics.NewPipelineMetrics(service, httpMetrics.Registry())

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Metrics: pipelineMetrics})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	tools := mcpadapter.NewTools(app.Pipeline, app.Dispatcher, app.Catalog, logger)
	opts := []httpadapter.Option{
		httpadapter.WithLogger(logger),
		httpadapter.WithMetrics(httpMetrics),
		httpadapter.WithMCPHandler(tools.HTTPHandler()),
	}
	if app.Dispatcher != nil {
		opts = append(opts, httpadapter.WithDispatcher(app.Dispatcher))
	}
	router, err := httpadapter.NewRouter(cfg, app.Pipeline, app.Catalog, opts...)
	if err != nil {
		logger.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "dispatch", cfg.RecommendDispatch, "llm_provider", cfg.LLMProvider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
