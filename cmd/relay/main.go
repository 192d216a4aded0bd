package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/user/question-service/internal/adapter/metrics"
	"github.com/user/question-service/internal/adapter/repository/postgres"
	redisrepo "github.com/user/question-service/internal/adapter/repository/redis"
	"github.com/user/question-service/internal/pkg/config"
	"github.com/user/question-service/internal/pkg/logger"
	"github.com/user/question-service/internal/usecase"
)

const (
	publishRetryCount   = 3
	publishRetryBackoff = 500 * time.Millisecond
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting outbox relay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewRelayMetrics()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		log.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	// Instantiate repositories
	outboxRepo := postgres.NewOutboxRepository(db, log)
	eventStream, err := redisrepo.NewEventStream(redisClient, log, cfg.EventStreamGroup, cfg.EventDLQStream)
	if err != nil {
		log.Error("failed to create event stream", "error", err)
		os.Exit(1)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RelayPublishRPS), cfg.RelayPublishRPS)
	relay := usecase.NewRelayOutboxUseCase(outboxRepo, eventStream, log, m, limiter, cfg.RelayBatchSize, publishRetryCount, publishRetryBackoff)

	ticker := time.NewTicker(cfg.RelayInterval)
	defer ticker.Stop()

	log.Info("outbox relay started", "interval", cfg.RelayInterval, "batch_size", cfg.RelayBatchSize)

Loop:
	for {
		select {
		case <-ticker.C:
			if _, err := relay.RelayBatch(ctx); err != nil {
				log.Error("error relaying batch", "error", err)
			}
		case <-ctx.Done():
			log.Info("context cancelled, shutting down relay loop")
			break Loop
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown failed", "error", err)
	}

	log.Info("outbox relay shut down gracefully")
}
