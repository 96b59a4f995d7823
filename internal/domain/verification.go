package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCodeNotFound = errors.New("verification code not found")
	ErrCodeExpired  = errors.New("verification code expired")
	ErrCodeInvalid  = errors.New("verification code invalid")
)

type CodeStatus string

const (
	CodeActive  CodeStatus = "ACTIVE"
	CodeUsed    CodeStatus = "USED"
	CodeExpired CodeStatus = "EXPIRED"
)

// CodeTTL is the business expiry window of a code. The cache mirror uses
// its own, shorter TTL so a stale cache entry never outlives the row.
const CodeTTL = 5 * time.Minute

type VerificationCode struct {
	ID        string
	UserID    string
	Code      string // always 4 digits, zero-padded
	Status    CodeStatus
	Attempts  int
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpiredAt is the single expiry predicate shared by the per-request
// check and the periodic sweep, so the two paths cannot diverge.
func ExpiredAt(expiresAt, now time.Time) bool {
	return !expiresAt.After(now)
}

func (c *VerificationCode) Expired(now time.Time) bool {
	return ExpiredAt(c.ExpiresAt, now)
}

// FormatCode renders a code value as exactly 4 digits ("0007").
// Comparison is an exact string match, never numeric.
func FormatCode(n int) string {
	return fmt.Sprintf("%04d", n)
}

// VerificationCache is the cache mirror of a code, keyed by owning user ID.
type VerificationCache struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Code      string     `json:"code"`
	Status    CodeStatus `json:"status"`
	Attempts  int        `json:"attempts"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (c *VerificationCode) ToCache() VerificationCache {
	return VerificationCache{
		ID:        c.ID,
		UserID:    c.UserID,
		Code:      c.Code,
		Status:    c.Status,
		Attempts:  c.Attempts,
		ExpiresAt: c.ExpiresAt,
	}
}
