package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/nurdaulet-ab/account-service/internal/cache"
	"github.com/nurdaulet-ab/account-service/internal/domain"
	"github.com/nurdaulet-ab/account-service/internal/repository"
)

// Warmup sources bind the generic engine to an entity family. Both
// families page the store by ID ascending and stop on the first empty
// page; everything else is mapping.

type userWarmupSource struct {
	repo repository.UserRepository
}

func (userWarmupSource) Name() string { return "user" }

func (s userWarmupSource) FetchBatch(ctx context.Context, afterID string, limit int) ([]*domain.User, error) {
	return s.repo.FindPage(ctx, afterID, limit)
}

func (userWarmupSource) LastID(u *domain.User) string { return u.ID }

func (userWarmupSource) CacheKey(u *domain.User) string { return cache.UserKey(u.ID) }

func (userWarmupSource) ToCacheEntry(u *domain.User) domain.UserCache { return u.ToCache() }

func NewUserWarmup(repo repository.UserRepository, store cache.Store, ttl time.Duration, batchSize int, logger *slog.Logger) *cache.Warmup[*domain.User, domain.UserCache] {
	return cache.NewWarmup(userWarmupSource{repo: repo}, store, ttl, batchSize, logger)
}

type verificationWarmupSource struct {
	repo repository.VerificationCodeRepository
}

func (verificationWarmupSource) Name() string { return "verification" }

func (s verificationWarmupSource) FetchBatch(ctx context.Context, afterID string, limit int) ([]*domain.VerificationCode, error) {
	return s.repo.FindPage(ctx, afterID, limit)
}

func (verificationWarmupSource) LastID(c *domain.VerificationCode) string { return c.ID }

// Codes mirror under their owning user's key; within a page, later rows
// for the same user overwrite earlier ones.
func (verificationWarmupSource) CacheKey(c *domain.VerificationCode) string {
	return cache.VerificationKey(c.UserID)
}

func (verificationWarmupSource) ToCacheEntry(c *domain.VerificationCode) domain.VerificationCache {
	return c.ToCache()
}

func NewVerificationWarmup(repo repository.VerificationCodeRepository, store cache.Store, ttl time.Duration, batchSize int, logger *slog.Logger) *cache.Warmup[*domain.VerificationCode, domain.VerificationCache] {
	return cache.NewWarmup(verificationWarmupSource{repo: repo}, store, ttl, batchSize, logger)
}
