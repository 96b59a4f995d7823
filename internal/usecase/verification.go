package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/nurdaulet-ab/account-service/internal/cache"
	"github.com/nurdaulet-ab/account-service/internal/domain"
	"github.com/nurdaulet-ab/account-service/internal/email"
	"github.com/nurdaulet-ab/account-service/internal/repository"
)

// VerificationUsecase owns the code lifecycle: ACTIVE -> USED on a correct
// match, ACTIVE -> EXPIRED on timeout, no way back out of either. The
// authoritative store is always the source of truth; the cache mirror is
// refreshed on every mutation and consulted first on validation.
type VerificationUsecase struct {
	codes    repository.VerificationCodeRepository
	users    repository.UserRepository
	store    cache.Store
	accessor *cache.Accessor[*domain.VerificationCode, domain.VerificationCache]
	sender   email.Sender
	logger   *slog.Logger
	now      func() time.Time
}

func NewVerificationUsecase(
	codes repository.VerificationCodeRepository,
	users repository.UserRepository,
	store cache.Store,
	cacheTTL time.Duration,
	sender email.Sender,
	logger *slog.Logger,
) *VerificationUsecase {
	accessor := cache.NewAccessor(cache.AccessorConfig[*domain.VerificationCode, domain.VerificationCache]{
		Name:  "verification",
		Store: store,
		TTL:   cacheTTL,
		// "By ID" for this family means "current code for this user":
		// the mirror is keyed by user, and the store fallback is the
		// most-recently-created row.
		LoadByID: codes.FindLatestByUserID,
		SaveStore: func(ctx context.Context, c *domain.VerificationCode) (*domain.VerificationCode, error) {
			return codes.Create(ctx, c)
		},
		ToCache:  func(c *domain.VerificationCode) domain.VerificationCache { return c.ToCache() },
		KeyForID: cache.VerificationKey,
		IDOf:     func(e domain.VerificationCache) string { return e.UserID },
	}, logger)

	return &VerificationUsecase{
		codes:    codes,
		users:    users,
		store:    store,
		accessor: accessor,
		sender:   sender,
		logger:   logger.With("component", "verification"),
		now:      time.Now,
	}
}

// Generate creates a fresh 4-digit code for the user, carrying the
// attempts counter forward from the previous code so resends keep
// accumulating cost. The raw code is returned for out-of-band delivery
// and also emailed; a delivery failure does not void the code.
func (v *VerificationUsecase) Generate(ctx context.Context, userID string) (string, error) {
	user, err := v.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	attempts := 0
	prev, err := v.codes.FindLatestByUserID(ctx, userID)
	switch {
	case err == nil:
		attempts = prev.Attempts + 1
	case errors.Is(err, domain.ErrCodeNotFound):
	default:
		return "", fmt.Errorf("load previous code: %w", err)
	}

	value, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	now := v.now()
	code := &domain.VerificationCode{
		UserID:    userID,
		Code:      value,
		Status:    domain.CodeActive,
		Attempts:  attempts,
		ExpiresAt: now.Add(domain.CodeTTL),
	}
	if _, err := v.accessor.Put(ctx, code); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	if err := v.sender.Send(ctx, user.Email, "Your verification code",
		fmt.Sprintf("<p>Your verification code is <b>%s</b>. It expires in %d minutes.</p>",
			value, int(domain.CodeTTL.Minutes()))); err != nil {
		v.logger.ErrorContext(ctx, "send verification code", "user_id", userID, "error", err)
	}

	return value, nil
}

// Validate checks input against the user's current code. In order:
// expiry, status, value. A mismatch increments attempts atomically at the
// store and mirrors the updated snapshot before failing.
func (v *VerificationUsecase) Validate(ctx context.Context, userID, input string) error {
	current, err := v.accessor.Get(ctx, userID)
	if err != nil {
		return err
	}
	now := v.now()

	if domain.ExpiredAt(current.ExpiresAt, now) {
		v.expire(ctx, current)
		return domain.ErrCodeExpired
	}

	// The latest row may already be USED or EXPIRED; it can never
	// transition again, so reject before comparing values.
	if current.Status != domain.CodeActive {
		return domain.ErrCodeInvalid
	}

	if input != current.Code {
		updated, err := v.codes.IncrementAttempts(ctx, current.ID)
		if err != nil {
			return fmt.Errorf("increment attempts: %w", err)
		}
		v.accessor.Mirror(ctx, updated.ToCache())
		return domain.ErrCodeInvalid
	}

	used, err := v.codes.MarkUsed(ctx, current.ID, now)
	if err != nil {
		if errors.Is(err, domain.ErrCodeNotFound) {
			// Lost a race: someone else consumed or expired the row
			// between our read and this write.
			return domain.ErrCodeInvalid
		}
		return fmt.Errorf("mark code used: %w", err)
	}
	v.accessor.Mirror(ctx, used.ToCache())

	if err := v.users.SetVerified(ctx, userID); err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	// The user mirror is stale now; drop it and let the next read
	// repopulate.
	if err := v.store.Delete(ctx, cache.UserKey(userID)); err != nil {
		v.logger.WarnContext(ctx, "evict user after verify", "user_id", userID, "error", err)
	}
	return nil
}

// expire flips the row in the store and refreshes the mirror. The row may
// already be terminal (sweep got there first); that is not an error, the
// caller still reports expiry.
func (v *VerificationUsecase) expire(ctx context.Context, current domain.VerificationCache) {
	expired, err := v.codes.MarkExpired(ctx, current.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrCodeNotFound) {
			v.logger.ErrorContext(ctx, "mark code expired", "code_id", current.ID, "error", err)
		}
		current.Status = domain.CodeExpired
		v.accessor.Mirror(ctx, current)
		return
	}
	v.accessor.Mirror(ctx, expired.ToCache())
}

// randomCode draws a uniform 4-digit value, zero-padded ("0007").
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return domain.FormatCode(int(n.Int64())), nil
}
