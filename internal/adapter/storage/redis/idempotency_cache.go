package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const settlementPrefix = "settlement:"

// IdempotencyCache implements ports.IdempotencyCache. It holds serialized
// confirmation results keyed by domain.BuildTopupConfirmKey and
// domain.BuildOrderConfirmKey; the database stays the durable record.
type IdempotencyCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed confirmation cache.
func NewIdempotencyCache(client goredis.UniversalClient) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: settlementPrefix,
	}
}

// Get returns nil, nil on a miss.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis confirmation get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key. A zero ttl keeps the entry until evicted.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis confirmation set %s: %w", key, err)
	}
	return nil
}
