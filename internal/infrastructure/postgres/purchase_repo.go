package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nurdaulet-ab/account-service/internal/domain"
)

type PurchaseRepository struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepository(pool *pgxpool.Pool) *PurchaseRepository {
	return &PurchaseRepository{pool: pool}
}

const purchaseColumns = `id, event_id, user_id, product_id, amount_cents, currency, created_at`

func (r *PurchaseRepository) Create(ctx context.Context, p *domain.Purchase) (*domain.Purchase, error) {
	query := `
		INSERT INTO purchases (event_id, user_id, product_id, amount_cents, currency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + purchaseColumns

	row := r.pool.QueryRow(ctx, query,
		p.EventID, p.UserID, p.ProductID, p.AmountCents, p.Currency)
	created, err := scanPurchase(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicatePurchase
		}
		return nil, err
	}
	return created, nil
}

func (r *PurchaseRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*domain.Purchase, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func scanPurchase(row rowScanner) (*domain.Purchase, error) {
	var p domain.Purchase
	err := row.Scan(&p.ID, &p.EventID, &p.UserID, &p.ProductID,
		&p.AmountCents, &p.Currency, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan purchase: %w", err)
	}
	return &p, nil
}
