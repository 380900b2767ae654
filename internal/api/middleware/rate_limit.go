package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"medqueue/internal/metrics"
	"medqueue/internal/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig is the per-client token bucket
type RateLimitConfig struct {
	// Requests allowed per Window
	Requests int
	// Window in seconds
	Window int
	// Burst is the bucket size
	Burst int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements rate limiting per client IP using a token bucket
type RateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idle     time.Duration
	window   int
	requests int
	skip     []string
}

// NewRateLimiter creates a new rate limiter middleware. Paths starting with
// one of skipPrefixes are not limited.
func NewRateLimiter(cfg RateLimitConfig, skipPrefixes ...string) *RateLimiter {
	if cfg.Requests < 1 {
		cfg.Requests = 1
	}
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	if cfg.Burst < 1 {
		cfg.Burst = cfg.Requests
	}

	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Every(time.Duration(cfg.Window) * time.Second / time.Duration(cfg.Requests)),
		burst:    cfg.Burst,
		idle:     time.Hour,
		window:   cfg.Window,
		requests: cfg.Requests,
		skip:     skipPrefixes,
	}
}

// getLimiter returns the limiter for key and drops limiters idle for longer
// than rl.idle
func (rl *RateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for k, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > rl.idle {
			delete(rl.limiters, k)
		}
	}

	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// Middleware returns a Gin middleware function that implements rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, prefix := range rl.skip {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		now := time.Now()
		limiter := rl.getLimiter(c.ClientIP(), now)
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", rl.requests))

		r := limiter.ReserveN(now, 1)
		if delay := r.DelayFrom(now); !r.OK() || delay > 0 {
			r.CancelAt(now)
			seconds := int(delay.Seconds())
			if seconds < 1 {
				seconds = 1
			}

			metrics.RateLimitExceededTotal.WithLabelValues("http").Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", now.Add(delay).Unix()))
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse{Error: "rate limit exceeded"})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", max(int(limiter.TokensAt(now)), 0)))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", now.Add(time.Duration(rl.window)*time.Second).Unix()))
		c.Next()
	}
}
