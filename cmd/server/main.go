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

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/nurdaulet-ab/account-service/config"
	"github.com/nurdaulet-ab/account-service/internal/cache"
	"github.com/nurdaulet-ab/account-service/internal/email"
	"github.com/nurdaulet-ab/account-service/internal/health"
	"github.com/nurdaulet-ab/account-service/internal/infrastructure/postgres"
	ctxlog "github.com/nurdaulet-ab/account-service/internal/log"
	"github.com/nurdaulet-ab/account-service/internal/metrics"
	"github.com/nurdaulet-ab/account-service/internal/sweeper"
	httptransport "github.com/nurdaulet-ab/account-service/internal/transport/http"
	"github.com/nurdaulet-ab/account-service/internal/transport/http/handler"
	"github.com/nurdaulet-ab/account-service/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

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

	store := cache.NewRedisStore(redisClient)

	userRepo := postgres.NewUserRepository(pool)
	codeRepo := postgres.NewVerificationCodeRepository(pool)
	purchaseRepo := postgres.NewPurchaseRepository(pool)

	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	userUsecase := usecase.NewUserUsecase(userRepo, purchaseRepo, store, cfg.UserCacheTTL(), logger)
	verificationUsecase := usecase.NewVerificationUsecase(
		codeRepo, userRepo, store, cfg.VerificationCacheTTL(), sender, logger)

	metrics.Register()
	checker := health.NewChecker(pool, store, logger, prometheus.DefaultRegisterer)

	// Warmup is fire-and-forget: a failed run only means cold first reads.
	go usecase.NewUserWarmup(userRepo, store, cfg.UserCacheTTL(), cfg.WarmupBatchSize, logger).Run(ctx)
	go usecase.NewVerificationWarmup(codeRepo, store, cfg.VerificationCacheTTL(), cfg.WarmupBatchSize, logger).Run(ctx)

	sweep, err := sweeper.New(codeRepo, cfg.SweepCron, logger)
	if err != nil {
		stop()
		log.Fatalf("sweeper: %v", err)
	}
	go sweep.Start(ctx)

	authHandler := handler.NewAuthHandler(userUsecase, verificationUsecase, []byte(cfg.JWTSecret), logger)
	userHandler := handler.NewUserHandler(userUsecase, logger)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, authHandler, userHandler, []byte(cfg.JWTSecret)),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
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
