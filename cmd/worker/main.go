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

	"github.com/kirillkom/steam-game-recommender/internal/bootstrap"
	"github.com/kirillkom/steam-game-recommender/internal/config"
	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
	"github.com/kirillkom/steam-game-recommender/internal/observability/logging"
	"github.com/kirillkom/steam-game-recommender/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewLogger(os.Stdout, service, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(service)
	pipelineMetrics := metrics.NewPipelineMetrics(service, workerMetrics.Registry())

	// Workers always run the pipeline locally.
	cfg.RecommendDispatch = "local"
	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Metrics: pipelineMetrics, ConnectQueue: true})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	err = app.Queue.Serve(ctx, func(handlerCtx context.Context, req domain.RecommendRequest) (domain.RecommendationResult, error) {
		maxResults := cfg.MaxOutputResults
		if req.MaxResults != nil {
			maxResults = *req.MaxResults
		}

		workerMetrics.StartRequest()
		started := time.Now()
		result := app.Pipeline.Recommend(handlerCtx, req.Query, maxResults)
		err := handlerCtx.Err()
		workerMetrics.FinishRequest(service, time.Since(started), err)
		if err != nil {
			return domain.RecommendationResult{}, domain.WrapError(domain.ErrTemporary, "recommend", err)
		}
		return result, nil
	})
	if err != nil {
		logger.Error("worker_serve_failed", "error", err)
		os.Exit(1)
	}
}
