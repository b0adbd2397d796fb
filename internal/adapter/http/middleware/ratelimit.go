package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisStore "ride-settlement/internal/adapter/storage/redis"
	"ride-settlement/pkg/apperror"
	"ride-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// Endpoint groups.
const (
	GroupWallets       = "wallets"
	GroupTopups        = "topups"
	GroupConfirmations = "confirmations"
	GroupOrders        = "orders"
	GroupReads         = "reads"
)

// DefaultRateLimitRules returns the per-group limits applied by the router.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		GroupWallets:       {Limit: 30, Window: time.Minute},
		GroupTopups:        {Limit: 60, Window: time.Minute},
		GroupConfirmations: {Limit: 120, Window: time.Minute},
		GroupOrders:        {Limit: 300, Window: time.Minute},
		GroupReads:         {Limit: 600, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// A Redis failure lets the request through.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys limits by operator when authenticated, else by client IP.
func extractIdentifier(c *gin.Context) string {
	if id := ActorID(c); id != nil {
		return "user:" + id.String()
	}
	return "ip:" + c.ClientIP()
}
