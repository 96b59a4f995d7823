package event

import (
	"encoding/json"
	"fmt"
)

// PurchaseEvent is the wire payload of a purchase, delivered at least
// once. MessageID is the dedup identity: redeliveries carry the same ID.
type PurchaseEvent struct {
	MessageID   string `json:"message_id"`
	UserID      string `json:"user_id"`
	ProductID   string `json:"product_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

func (e PurchaseEvent) Marshal() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal purchase event: %w", err)
	}
	return raw, nil
}

// Builder stamps events with IDs from an injected generator — no
// process-wide counter, so concurrent producers cannot collide and tests
// can make IDs deterministic.
type Builder struct {
	newID func() string
}

func NewBuilder(newID func() string) *Builder {
	return &Builder{newID: newID}
}

func (b *Builder) Purchase(userID, productID string, amountCents int64, currency string) PurchaseEvent {
	return PurchaseEvent{
		MessageID:   b.newID(),
		UserID:      userID,
		ProductID:   productID,
		AmountCents: amountCents,
		Currency:    currency,
	}
}
