package security

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis *redis.Client

	// MaxPerMinute caps requests per identity per minute.
	MaxPerMinute int64
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis:        redisClient,
		MaxPerMinute: 30,
	}
}

// Limit is a route middleware that rate limits by user id when
// authenticated, falling back to remote IP.
func (r *RateLimiter) Limit(scope string) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		identity := e.RealIP()
		if e.Auth != nil {
			identity = fmt.Sprintf("user:%s", e.Auth.Id)
		}

		key := fmt.Sprintf("ratelimit:%s:%s", scope, identity)

		count, err := r.redis.Incr(e.Request.Context(), key).Result()
		if err == nil {
			if count == 1 {
				r.redis.Expire(e.Request.Context(), key, time.Minute)
			}
			if count > r.MaxPerMinute {
				return e.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "Rate limit exceeded. Please try again later.",
				})
			}
		}

		return e.Next()
	}
}

// AntiBot rejects requests with obvious scraper user agents.
func (r *RateLimiter) AntiBot() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		userAgent := e.Request.Header.Get("User-Agent")
		if isSuspiciousUserAgent(userAgent) {
			return e.JSON(http.StatusForbidden, map[string]string{
				"error": "Access denied",
			})
		}
		return e.Next()
	}
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}

// RequireAdminKey guards privileged routes with the X-Admin-Key header,
// verified against the configured bcrypt hash.
func RequireAdminKey(keyHash string) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if keyHash == "" {
			return apis.NewForbiddenError("Admin access is not configured", nil)
		}
		if !VerifyAdminKey(keyHash, e.Request.Header.Get("X-Admin-Key")) {
			return apis.NewForbiddenError("Access denied", nil)
		}
		return e.Next()
	}
}
