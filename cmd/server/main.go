// Command server starts the AI mock interview HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/ai/tokencount"
	httpserver "github.com/fairyhunter13/ai-mock-interview/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/observability"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/ai-mock-interview/internal/adapter/repo/postgres"
	tikaext "github.com/fairyhunter13/ai-mock-interview/internal/adapter/textextractor/tika"
	qdrantcli "github.com/fairyhunter13/ai-mock-interview/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ai-mock-interview/internal/app"
	"github.com/fairyhunter13/ai-mock-interview/internal/config"
	"github.com/fairyhunter13/ai-mock-interview/internal/domain"
	"github.com/fairyhunter13/ai-mock-interview/internal/feedback"
	"github.com/fairyhunter13/ai-mock-interview/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-mock-interview/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	content, err := config.LoadInterviewContent(cfg.InterviewConfigPath)
	if err != nil {
		slog.Error("interview content load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.ApplyOverrides(&content); err != nil {
		slog.Error("invalid interview overrides", slog.Any("error", err))
		os.Exit(1)
	}
	scorer := feedback.New(content.Scorer, feedback.WithLogger(logger))

	ctx := context.Background()

	// Infra: DB pool
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("db migrate failed", slog.Any("error", err))
		os.Exit(1)
	}
	sessions := postgres.NewSessionRepo(pool)
	answers := postgres.NewAnswerRepo(pool)

	// Per-user model quota
	var quota domain.QuotaLimiter
	var rdb *redis.Client
	if ropts, err := redis.ParseURL(cfg.RedisURL); err != nil {
		slog.Warn("invalid REDIS_URL, model quota disabled", slog.Any("error", err))
	} else {
		rdb = redis.NewClient(ropts)
		defer func() { _ = rdb.Close() }()
		limiter := ratelimiter.NewRedisLuaLimiter(rdb, pool, map[string]ratelimiter.BucketConfig{
			ratelimiter.UserAIPrefix: {Capacity: cfg.AIUserBucketCapacity, RefillRate: cfg.AIUserRefillPerSec},
		})
		if err := limiter.WarmFromPostgres(ctx); err != nil {
			slog.Warn("rate limit warmup failed", slog.Any("error", err))
		}
		quota = limiter
	}

	aiStack, err := app.BuildAI(cfg)
	if err != nil {
		slog.Error("ai client setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("ai client initialized", slog.String("provider", aiStack.Provider))

	// Interview memory
	var memory domain.MemoryStore
	var qcli *qdrantcli.Client
	if cfg.QdrantURL != "" {
		qcli = qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey)
		store := qdrantcli.NewMemoryStore(qcli, aiStack.Client, cfg.MemoryCollection, cfg.EmbeddingsDim)
		_ = app.EnsureMemoryCollection(ctx, store, 30*time.Second)
		memory = store
	}

	// Answer events
	var events domain.EventPublisher
	var producer *redpanda.Producer
	if len(cfg.KafkaBrokers) > 0 {
		host, _ := os.Hostname()
		producer, err = redpanda.NewProducer(ctx, cfg.KafkaBrokers, "interview-api-"+host, cfg.AnswerTopic, cfg.DLQTopic)
		if err != nil {
			slog.Error("redpanda producer connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				slog.Error("failed to close producer", slog.Any("error", err))
			}
		}()
		events = producer
	}

	interview := usecase.NewInterviewService(usecase.InterviewDeps{
		Sessions:    sessions,
		Answers:     answers,
		Memory:      memory,
		Events:      events,
		Transcriber: aiStack.Transcriber,
		AI:          aiStack.Client,
		Quota:       quota,
		Scorer:      scorer,
		Content:     content,
		Drift:       observability.NewConfidenceDriftMonitor(50, 15),
		Tokens:      tokencount.DefaultCounter,
	}, usecase.InterviewOptions{
		AnalysisEnabled:    cfg.AIAnalysisEnabled,
		HistoryTokenBudget: cfg.HistoryTokenBudget,
		ChatModel:          cfg.ChatModel,
	})
	coach := usecase.NewCoachService(aiStack.Client, quota)
	reports := usecase.NewReportService(sessions, answers, aiStack.Client, quota, content.Improvements, cfg.ChatModel)
	fb := usecase.NewFeedbackService(scorer, coach)

	// External text extractor (Apache Tika)
	ext := tikaext.New(cfg.TikaURL, tikaext.WithAllowedRoots(os.TempDir()))

	deps := app.Dependencies{DB: pool, Redis: app.RedisPinger(rdb)}
	if qcli != nil {
		deps.Qdrant = qcli
	}
	if producer != nil {
		deps.Kafka = producer
	}
	srv := httpserver.NewServer(cfg, interview, coach, reports, fb, ext, app.BuildReadinessChecks(cfg, deps)...)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
