package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	// Rate is the number of calls allowed per second. Zero disables the
	// limiter where the caller treats it as optional.
	Rate float64 `yaml:"rate" mapstructure:"rate" json:"rate"`
	// Burst is the bucket size. It defaults to Rate rounded up.
	Burst int `yaml:"burst" mapstructure:"burst" json:"burst"`
}

// Enabled reports whether the configuration asks for a limit.
func (c RateLimiterConfig) Enabled() bool { return c.Rate > 0 }

// RateLimiter is a token bucket. Wait reserves a token and sleeps until it
// is due, so concurrent callers are served in order of arrival.
type RateLimiter struct {
	rate  float64
	burst float64

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10
	}
	if config.Burst <= 0 {
		config.Burst = int(config.Rate)
		if float64(config.Burst) < config.Rate {
			config.Burst++
		}
	}
	rl := &RateLimiter{rate: config.Rate, burst: float64(config.Burst), now: time.Now}
	rl.tokens = rl.burst
	rl.lastRefill = rl.now()
	return rl
}

// Allow takes a token if one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := rl.reserve()
	if d <= 0 {
		return nil
	}
	return Sleep(ctx, d)
}

// Tokens returns the tokens currently in the bucket. It is negative while
// callers are waiting on reservations.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// reserve takes a token, going into debt if necessary, and returns how long
// the caller must wait for it.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	rl.tokens--
	if rl.tokens >= 0 {
		return 0
	}
	return time.Duration(-rl.tokens / rl.rate * float64(time.Second))
}

func (rl *RateLimiter) refill() {
	now := rl.now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.rate
	rl.lastRefill = now
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
}
