package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/user/question-service/internal/adapter/metrics"
	redisrepo "github.com/user/question-service/internal/adapter/repository/redis"
	"github.com/user/question-service/internal/pkg/config"
	"github.com/user/question-service/internal/pkg/logger"
	"github.com/user/question-service/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("starting tag usage projector")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewProjectorMetrics()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		log.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	// Create a unique consumer name for this instance
	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "projector-default"
	}

	// Instantiate repositories
	eventStream, err := redisrepo.NewEventStream(redisClient, log, cfg.EventStreamGroup, cfg.EventDLQStream)
	if err != nil {
		log.Error("failed to create event stream", "error", err)
		os.Exit(1)
	}
	usageStore := redisrepo.NewTagUsageStore(redisClient, log, cfg.LedgerRetention)
	adminRepo := redisrepo.NewAdminRepository(redisClient, log)

	projector := usecase.NewProjectTagUsageUseCase(eventStream, usageStore, adminRepo, log, m, cfg.EventStreamGroup, consumerName, cfg.ProjectorBatchSize)

	processTicker := time.NewTicker(cfg.ProjectorInterval)
	defer processTicker.Stop()
	reclaimTicker := time.NewTicker(cfg.ReclaimInterval)
	defer reclaimTicker.Stop()

	log.Info("projector started", "group", cfg.EventStreamGroup, "consumer", consumerName)

Loop:
	for {
		select {
		case <-processTicker.C:
			if _, err := projector.ProcessBatch(ctx); err != nil {
				log.Error("error processing batch", "error", err)
			}
		case <-reclaimTicker.C:
			if claimed, err := projector.ReclaimStale(ctx, cfg.ReclaimMinIdle); err != nil {
				log.Error("error reclaiming stale messages", "error", err)
			} else if claimed > 0 {
				log.Info("reclaimed stale deliveries", "count", claimed)
			}
			if _, err := adminRepo.Trim(ctx, cfg.StreamMaxLen); err != nil {
				log.Error("error trimming stream", "error", err)
			}
			if summary, err := adminRepo.PendingSummary(ctx, cfg.EventStreamGroup); err != nil {
				log.Error("error reading pending summary", "error", err)
			} else if summary.Total > 0 {
				log.Info("pending deliveries in group", "total", summary.Total, "consumers", len(summary.ConsumerTotals))
			}
		case <-ctx.Done():
			log.Info("context cancelled, shutting down projector loop")
			break Loop
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown failed", "error", err)
	}

	log.Info("projector shut down gracefully")
}
