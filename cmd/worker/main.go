// Package main provides the worker application entry point.
// The worker indexes recorded answers into the interview memory and runs
// the scheduled data retention cleanup.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/repo/postgres"
	qdrantcli "github.com/fairyhunter13/ai-mock-interview/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ai-mock-interview/internal/app"
	"github.com/fairyhunter13/ai-mock-interview/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Register Prometheus metrics in the worker process and expose them on a
	// dedicated /metrics endpoint.
	observability.InitMetrics()
	metricsSrv := &http.Server{Addr: ":9090", ReadHeaderTimeout: 5 * time.Second}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv.Handler = mux
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	aiStack, err := app.BuildAI(cfg)
	if err != nil {
		slog.Error("ai client setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	qcli := qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey)
	memory := qdrantcli.NewMemoryStore(qcli, aiStack.Client, cfg.MemoryCollection, cfg.EmbeddingsDim)
	_ = app.EnsureMemoryCollection(ctx, memory, time.Minute)

	host, _ := os.Hostname()
	producer, err := redpanda.NewProducer(ctx, cfg.KafkaBrokers, "interview-worker-"+host, cfg.AnswerTopic, cfg.DLQTopic)
	if err != nil {
		slog.Error("queue producer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			slog.Error("failed to close queue producer", slog.Any("error", err))
		}
	}()

	indexer := redpanda.NewAnswerIndexer(memory, producer, cfg.GetRetryPolicy())
	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.AnswerTopic, cfg.WorkerConcurrency, indexer)
	if err != nil {
		slog.Error("redpanda consumer init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer consumer.Close()

	cleanup, err := app.ScheduleCleanup(cfg.CleanupSchedule, postgres.NewCleanupService(pool, cfg.SessionRetentionDays), 10*time.Minute)
	if err != nil {
		slog.Error("cleanup scheduler init failed", slog.Any("error", err))
		os.Exit(1)
	}
	cleanup.Start()
	slog.Info("cleanup scheduled",
		slog.String("schedule", cfg.CleanupSchedule),
		slog.Int("retention_days", cfg.SessionRetentionDays))

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("consumer stopped", slog.Any("error", err))
	}

	slog.Info("worker shutting down")
	<-cleanup.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
