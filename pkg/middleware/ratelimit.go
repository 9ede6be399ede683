package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/swaptrading/pkg/logger"
	"github.com/wyfcoding/swaptrading/pkg/ratelimit"
)

// RateLimitMiddleware creates a Gin middleware for rate limiting.
// Requests are keyed by the acting user when present, otherwise by client IP.
func RateLimitMiddleware(limiter ratelimit.RateLimiter, limit ratelimit.Limit) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:ip:" + c.ClientIP()
		if userID := c.GetHeader(HeaderUserID); userID != "" {
			key = "ratelimit:user:" + userID
		}

		res, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			// fail open
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(res.RetryAfter/time.Second)+1, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too Many Requests",
				"retry_after": res.RetryAfter.String(),
			})
			return
		}

		c.Next()
	}
}
