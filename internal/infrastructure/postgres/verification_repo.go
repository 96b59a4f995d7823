package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nurdaulet-ab/account-service/internal/domain"
)

type VerificationCodeRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationCodeRepository(pool *pgxpool.Pool) *VerificationCodeRepository {
	return &VerificationCodeRepository{pool: pool}
}

const codeColumns = `id, user_id, code, status, attempts, expires_at, used_at, created_at, updated_at`

func (r *VerificationCodeRepository) Create(ctx context.Context, code *domain.VerificationCode) (*domain.VerificationCode, error) {
	query := `
		INSERT INTO verification_codes (user_id, code, status, attempts, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + codeColumns

	row := r.pool.QueryRow(ctx, query,
		code.UserID, code.Code, code.Status, code.Attempts, code.ExpiresAt)
	return scanCode(row)
}

func (r *VerificationCodeRepository) FindLatestByUserID(ctx context.Context, userID string) (*domain.VerificationCode, error) {
	// Rows are never deleted (audit trail); the lifecycle only ever looks
	// at the newest row for a user.
	row := r.pool.QueryRow(ctx, `
		SELECT `+codeColumns+`
		FROM verification_codes
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, userID)
	return scanCode(row)
}

func (r *VerificationCodeRepository) IncrementAttempts(ctx context.Context, id string) (*domain.VerificationCode, error) {
	// Arithmetic increment at the store so concurrent mismatches never
	// lose a count.
	row := r.pool.QueryRow(ctx, `
		UPDATE verification_codes
		SET    attempts   = attempts + 1,
		       updated_at = NOW()
		WHERE id = $1
		RETURNING `+codeColumns, id)
	return scanCode(row)
}

func (r *VerificationCodeRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) (*domain.VerificationCode, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE verification_codes
		SET    status     = 'USED',
		       used_at    = $2,
		       updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING `+codeColumns, id, usedAt)
	return scanCode(row)
}

func (r *VerificationCodeRepository) MarkExpired(ctx context.Context, id string) (*domain.VerificationCode, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE verification_codes
		SET    status     = 'EXPIRED',
		       updated_at = NOW()
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING `+codeColumns, id)
	return scanCode(row)
}

func (r *VerificationCodeRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	// The WHERE clause makes overlapping sweep runs harmless: a second
	// pass over already-EXPIRED rows matches nothing.
	tag, err := r.pool.Exec(ctx, `
		UPDATE verification_codes
		SET    status     = 'EXPIRED',
		       updated_at = NOW()
		WHERE status = 'ACTIVE' AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire overdue codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *VerificationCodeRepository) FindPage(ctx context.Context, afterID string, limit int) ([]*domain.VerificationCode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+codeColumns+`
		FROM verification_codes
		WHERE id::text > $1
		ORDER BY id::text ASC
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("page verification codes: %w", err)
	}
	defer rows.Close()

	var codes []*domain.VerificationCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

func scanCode(row rowScanner) (*domain.VerificationCode, error) {
	var c domain.VerificationCode
	err := row.Scan(&c.ID, &c.UserID, &c.Code, &c.Status, &c.Attempts,
		&c.ExpiresAt, &c.UsedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, fmt.Errorf("scan verification code: %w", err)
	}
	return &c, nil
}
