package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nurdaulet-ab/account-service/internal/cache"
	"github.com/nurdaulet-ab/account-service/internal/domain"
	"github.com/nurdaulet-ab/account-service/internal/repository"
)

type UserUsecase struct {
	repo      repository.UserRepository
	purchases repository.PurchaseRepository
	accessor  *cache.Accessor[*domain.User, domain.UserCache]
}

func NewUserUsecase(
	repo repository.UserRepository,
	purchases repository.PurchaseRepository,
	store cache.Store,
	ttl time.Duration,
	logger *slog.Logger,
) *UserUsecase {
	accessor := cache.NewAccessor(cache.AccessorConfig[*domain.User, domain.UserCache]{
		Name:      "user",
		Store:     store,
		TTL:       ttl,
		LoadByID:  repo.FindByID,
		LoadByKey: repo.FindByEmail,
		SaveStore: repo.Save,
		ToCache:   func(u *domain.User) domain.UserCache { return u.ToCache() },
		KeyForID:  cache.UserKey,
		IDOf:      func(e domain.UserCache) string { return e.ID },
	}, logger)

	return &UserUsecase{
		repo:      repo,
		purchases: purchases,
		accessor:  accessor,
	}
}

// Register creates the user in the store and mirrors the snapshot.
func (u *UserUsecase) Register(ctx context.Context, email, name string) (*domain.User, error) {
	user := &domain.User{
		Email: email,
		Name:  name,
		Role:  domain.RoleUser,
	}
	created, err := u.repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.accessor.Mirror(ctx, created.ToCache())
	return created, nil
}

// GetByID reads through the cache mirror.
func (u *UserUsecase) GetByID(ctx context.Context, id string) (domain.UserCache, error) {
	return u.accessor.Get(ctx, id)
}

// GetByEmail resolves the alternate key against the store and refreshes
// the mirror for the resolved user.
func (u *UserUsecase) GetByEmail(ctx context.Context, email string) (domain.UserCache, error) {
	return u.accessor.GetByKey(ctx, email)
}

// Update persists the user (hard error on store failure) and mirrors the
// saved row eagerly, so a follow-up GetByID observes the new value.
func (u *UserUsecase) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	return u.accessor.Put(ctx, user)
}

// SetRole is a destructive-style update through a narrow store path, so
// it evicts rather than mirrors: the next read repopulates.
func (u *UserUsecase) SetRole(ctx context.Context, id string, role domain.Role) error {
	user, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.Role = role
	if _, err := u.repo.Save(ctx, user); err != nil {
		return fmt.Errorf("save role: %w", err)
	}
	u.accessor.Evict(ctx, id)
	return nil
}

func (u *UserUsecase) ListPurchases(ctx context.Context, userID string, limit int) ([]*domain.Purchase, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return u.purchases.ListByUserID(ctx, userID, limit)
}
