package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/andrewhilario/grocery-pos-backend/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limit is a fixed-window request budget per client IP.
type Limit struct {
	Name     string // key namespace, e.g. "login"
	Requests int
	Window   time.Duration
	Message  string
}

var (
	APILimit   = Limit{Name: "api", Requests: 1000, Window: time.Minute, Message: "too many requests, slow down"}
	LoginLimit = Limit{Name: "login", Requests: 20, Window: time.Minute, Message: "too many login attempts, try again in a minute"}
)

// windowKey buckets now into the current window so every server instance
// counts against the same Redis key.
func windowKey(l Limit, ip string, now time.Time) (string, time.Time) {
	start := now.Truncate(l.Window)
	return fmt.Sprintf("ratelimit:%s:%s:%d", l.Name, ip, start.Unix()), start.Add(l.Window)
}

// hit increments the counter for the client's current window.
func hit(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (int64, error) {
	pipe := rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimiter enforces l against Redis. Without Redis, or when Redis errors,
// requests pass.
func RateLimiter(rdb *redis.Client, l Limit) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		key, resetAt := windowKey(l, c.ClientIP(), time.Now())
		count, err := hit(c.Request.Context(), rdb, key, l.Window)
		if err != nil {
			log.Warn().Err(err).Str("limit", l.Name).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.Requests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(int64(l.Requests)-count, 0), 10))
		if count > int64(l.Requests) {
			retry := int(time.Until(resetAt).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(l.Message))
			return
		}
		c.Next()
	}
}
