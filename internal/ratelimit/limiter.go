// Package ratelimit throttles code requests per identifier across instances
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medqueue/internal/logger"
	"medqueue/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrTooManyRequests is returned when the window budget is used up
var ErrTooManyRequests = errors.New("too many requests")

// Limiter counts requests per key within a fixed window
type Limiter interface {
	// Allow records a request and returns ErrTooManyRequests once the limit is exceeded
	Allow(ctx context.Context, scope, key string) error
}

// RedisLimiter keeps fixed-window counters in Redis
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	log    *zap.Logger
}

// NewRedisLimiter creates a limiter allowing limit requests per window and key
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, log *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		log:    logger.WithComponent(log, "ratelimit"),
	}
}

func (l *RedisLimiter) key(scope, key string) string {
	return fmt.Sprintf("medqueue:ratelimit:%s:%s", scope, strings.ToLower(strings.TrimSpace(key)))
}

// windowScript counts a request and makes sure the key carries a TTL, so a
// counter can never outlive its window
var windowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Allow fails open when Redis is unreachable so logins keep working
func (l *RedisLimiter) Allow(ctx context.Context, scope, key string) error {
	count, err := windowScript.Run(ctx, l.client, []string{l.key(scope, key)}, l.window.Milliseconds()).Int64()
	if err != nil {
		l.log.Error("rate limit counter unavailable", zap.String("scope", scope), zap.Error(err))
		return nil
	}

	if count > l.limit {
		metrics.RateLimitExceededTotal.WithLabelValues(scope).Inc()
		return ErrTooManyRequests
	}
	return nil
}

// Nop allows everything. It is used when Redis is not configured.
type Nop struct{}

func (Nop) Allow(context.Context, string, string) error { return nil }
