package repository

import (
	"context"

	"github.com/nurdaulet-ab/account-service/internal/domain"
)

type PurchaseRepository interface {
	// Create persists a purchase derived from an event. A duplicate
	// event_id returns domain.ErrDuplicatePurchase — the second safety
	// net under the dedup claim.
	Create(ctx context.Context, p *domain.Purchase) (*domain.Purchase, error)
	ListByUserID(ctx context.Context, userID string, limit int) ([]*domain.Purchase, error)
}
