package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL   string `env:"DATABASE_URL,required" validate:"required"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379" validate:"required"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret    string `env:"JWT_SECRET,required"   validate:"required,min=32"`
	ResendAPIKey string `env:"RESEND_API_KEY"         validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"            validate:"required_if=Env production,required_if=Env staging"`

	WarmupBatchSize         int `env:"WARMUP_BATCH_SIZE" envDefault:"500" validate:"min=1,max=10000"`
	UserCacheTTLMin         int `env:"USER_CACHE_TTL_MIN" envDefault:"1440" validate:"min=1"`
	VerificationCacheTTLSec int `env:"VERIFICATION_CACHE_TTL_SEC" envDefault:"180" validate:"min=1"`

	// Standard cron expression; default sweeps every minute.
	SweepCron string `env:"SWEEP_CRON" envDefault:"* * * * *" validate:"required"`

	KafkaBrokers     []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" validate:"required,min=1"`
	KafkaTopic       string   `env:"KAFKA_TOPIC" envDefault:"purchases" validate:"required"`
	KafkaGroupID     string   `env:"KAFKA_GROUP_ID" envDefault:"account-service" validate:"required"`
	EventBatchSize   int      `env:"EVENT_BATCH_SIZE" envDefault:"100" validate:"min=1,max=1000"`
	EventConcurrency int      `env:"EVENT_CONCURRENCY" envDefault:"10" validate:"min=1,max=100"`
	DedupTTLMin      int      `env:"DEDUP_TTL_MIN" envDefault:"60" validate:"min=1"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if _, err := cron.ParseStandard(cfg.SweepCron); err != nil {
		return nil, fmt.Errorf("invalid SWEEP_CRON %q: %w", cfg.SweepCron, err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) UserCacheTTL() time.Duration {
	return time.Duration(c.UserCacheTTLMin) * time.Minute
}

func (c *Config) VerificationCacheTTL() time.Duration {
	return time.Duration(c.VerificationCacheTTLSec) * time.Second
}

func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLMin) * time.Minute
}
