// ratelimit.go provides Gin middleware that enforces per-client GCRA rate limits stored
// in Redis, returning 429 responses when the configured requests-per-minute threshold
// is exceeded. State lives in Redis so every replica shares the same budget.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/task-manager/task-manager/internal/telemetry"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
}

// DefaultRateLimitConfig returns the limits applied to the API as a whole.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
		BurstSize:         20,
	}
}

// AuthRateLimitConfig returns stricter limits for the register and login endpoints.
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10, // 10 login attempts per minute
		BurstSize:         5,
	}
}

func (c RateLimitConfig) limit() redis_rate.Limit {
	burst := c.BurstSize
	if burst <= 0 {
		burst = c.RequestsPerMinute
	}
	return redis_rate.Limit{
		Rate:   c.RequestsPerMinute,
		Burst:  burst,
		Period: time.Minute,
	}
}

// RateLimiter applies one RateLimitConfig to keys under a shared Redis prefix.
type RateLimiter struct {
	limiter *redis_rate.Limiter
	prefix  string
	config  RateLimitConfig
}

// NewRateLimiter creates a limiter backed by rdb. prefix separates independent
// budgets (for example "api" and "auth") that share a Redis instance.
func NewRateLimiter(rdb redis.UniversalClient, prefix string, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		prefix:  prefix,
		config:  config,
	}
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests.
// When Redis is unreachable the request is let through and the failure logged:
// the limiter protects capacity, it is not an access control.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.prefix + ":" + getRateLimitKey(c)

		res, err := rl.limiter.Allow(c.Request.Context(), key, rl.config.limit())
		if err != nil {
			slog.Warn("rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			telemetry.RateLimitRejectionsTotal.Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting.
// Priority: principal subject > IP address
func getRateLimitKey(c *gin.Context) string {
	if p := GetPrincipal(c); p != nil && p.SubjectID != "" {
		return "user:" + p.SubjectID
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
