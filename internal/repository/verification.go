package repository

import (
	"context"
	"time"

	"github.com/nurdaulet-ab/account-service/internal/domain"
)

type VerificationCodeRepository interface {
	Create(ctx context.Context, code *domain.VerificationCode) (*domain.VerificationCode, error)

	// FindLatestByUserID returns the most-recently-created code for the
	// user regardless of status, or domain.ErrCodeNotFound.
	FindLatestByUserID(ctx context.Context, userID string) (*domain.VerificationCode, error)

	// IncrementAttempts bumps attempts by one in the store (attempts =
	// attempts + 1, never read-modify-write from a cached snapshot) and
	// returns the updated row.
	IncrementAttempts(ctx context.Context, id string) (*domain.VerificationCode, error)

	MarkUsed(ctx context.Context, id string, usedAt time.Time) (*domain.VerificationCode, error)
	MarkExpired(ctx context.Context, id string) (*domain.VerificationCode, error)

	// ExpireOverdue transitions every ACTIVE row with expires_at <= now to
	// EXPIRED in one statement and returns the number of rows changed.
	// Idempotent: re-running it touches nothing.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)

	// FindPage pages codes by ID ascending for cache warmup.
	FindPage(ctx context.Context, afterID string, limit int) ([]*domain.VerificationCode, error)
}
