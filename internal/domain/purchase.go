package domain

import (
	"errors"
	"time"
)

var ErrDuplicatePurchase = errors.New("purchase already recorded")

// Purchase is the record derived from a consumed purchase event.
// EventID is the upstream message ID; it doubles as the uniqueness key
// under the dedup claim.
type Purchase struct {
	ID          string
	EventID     string
	UserID      string
	ProductID   string
	AmountCents int64
	Currency    string
	CreatedAt   time.Time
}
