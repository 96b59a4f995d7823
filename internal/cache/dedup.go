package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claimer is the atomic set-if-absent primitive behind idempotent event
// processing and single-use tokens. A claim succeeds at most once per key
// per TTL window: first observer wins, everyone else gets false.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisClaimer struct {
	client *redis.Client
}

func NewRedisClaimer(client *redis.Client) *RedisClaimer {
	return &RedisClaimer{client: client}
}

func (c *RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim %s: %w", key, err)
	}
	return ok, nil
}

// DedupKey builds a namespace-prefixed marker key, e.g.
// DedupKey("purchase", msgID) -> "dedup:purchase:<msgID>".
func DedupKey(namespace, id string) string {
	return "dedup:" + namespace + ":" + id
}
