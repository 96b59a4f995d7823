package repository

import (
	"context"

	"github.com/nurdaulet-ab/account-service/internal/domain"
)

// Usecases depend on interfaces, not the pgx implementations, so the DB can
// be swapped without touching them and tests can inject fakes.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) (*domain.User, error)
	SetVerified(ctx context.Context, id string) error

	// FindPage returns up to limit users with ID > afterID, ordered by ID
	// ascending. An empty afterID starts from the beginning. Used by the
	// cache warmup engine; an empty page terminates the run.
	FindPage(ctx context.Context, afterID string, limit int) ([]*domain.User, error)
}
