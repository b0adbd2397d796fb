package service

import (
	"context"
	"encoding/json"
	"time"

	"ride-settlement/internal/core/ports"

	"github.com/rs/zerolog"
)

// confirmationCache is the Redis fast path in front of the confirmation
// endpoints. Every failure degrades to a database round trip.
type confirmationCache struct {
	cache ports.IdempotencyCache
	ttl   time.Duration
}

// load decodes the cached result for key into dst and reports whether it did.
func (c confirmationCache) load(ctx context.Context, log *zerolog.Logger, key string, dst any) bool {
	if c.cache == nil {
		return false
	}
	cached, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis confirmation lookup failed, falling through to DB")
		return false
	}
	if cached == nil {
		return false
	}
	if err := json.Unmarshal(cached, dst); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached confirmation")
		return false
	}
	return true
}

func (c confirmationCache) store(ctx context.Context, log *zerolog.Logger, key string, result any) {
	if c.cache == nil {
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode confirmation for cache")
		return
	}
	if err := c.cache.Set(ctx, key, body, c.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to cache confirmation in redis")
	}
}
