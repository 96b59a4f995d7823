package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/nurdaulet-ab/account-service/config"
	"github.com/nurdaulet-ab/account-service/internal/cache"
	"github.com/nurdaulet-ab/account-service/internal/consumer"
	"github.com/nurdaulet-ab/account-service/internal/health"
	"github.com/nurdaulet-ab/account-service/internal/infrastructure/postgres"
	ctxlog "github.com/nurdaulet-ab/account-service/internal/log"
	"github.com/nurdaulet-ab/account-service/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	redisClient, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		stop()
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	logger.Info("db and redis connected")

	metrics.Register()
	checker := health.NewChecker(pool, cache.NewRedisStore(redisClient), logger, prometheus.DefaultRegisterer)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
		// Offsets are committed explicitly per batch.
		CommitInterval: 0,
		MinBytes:       1,
		MaxBytes:       10e6,
	})
	defer reader.Close()

	processor := consumer.New(
		reader,
		cache.NewRedisClaimer(redisClient),
		postgres.NewPurchaseRepository(pool),
		consumer.Config{
			BatchSize:   cfg.EventBatchSize,
			Concurrency: cfg.EventConcurrency,
			DedupTTL:    cfg.DedupTTL(),
		},
		logger,
	)
	go processor.Start(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("consumer shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
