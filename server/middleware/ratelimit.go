package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/mediascribe/auth"
	"github.com/kbukum/mediascribe/errors"
)

// RateLimitConfig limits how often one caller may hit a route.
type RateLimitConfig struct {
	// PerMinute is the number of requests allowed in any sliding minute.
	// Zero disables the limit.
	PerMinute int `mapstructure:"per_minute" json:"per_minute"`
}

// RateLimit applies a per-caller sliding-window limit. Callers are keyed by
// token subject when authenticated, by client IP otherwise. The cleanup
// goroutine stops with ctx.
func RateLimit(ctx context.Context, cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.PerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	rl := &rateLimiter{hits: make(map[string][]time.Time), limit: cfg.PerMinute, window: time.Minute, now: time.Now}
	go rl.sweepEvery(ctx, 5*time.Minute)

	return func(c *gin.Context) {
		if !rl.allow(callerKey(c)) {
			c.Header("Retry-After", "60")
			abort(c, errors.RateLimited())
			return
		}
		c.Next()
	}
}

func callerKey(c *gin.Context) string {
	if claims, ok := auth.FromContext(c.Request.Context()); ok && claims.Subject != "" {
		return "sub:" + claims.Subject
	}
	return "ip:" + c.ClientIP()
}

type rateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	recent := since(rl.hits[key], now.Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.hits[key] = recent
		return false
	}
	rl.hits[key] = append(recent, now)
	return true
}

func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.window)
	for key, times := range rl.hits {
		if recent := since(times, cutoff); len(recent) > 0 {
			rl.hits[key] = recent
		} else {
			delete(rl.hits, key)
		}
	}
}

func (rl *rateLimiter) sweepEvery(ctx context.Context, d time.Duration) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// since returns the suffix of times after cutoff. times is in ascending order.
func since(times []time.Time, cutoff time.Time) []time.Time {
	for i, t := range times {
		if t.After(cutoff) {
			return times[i:]
		}
	}
	return nil
}
