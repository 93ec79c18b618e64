package login

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iam0-cloud/iam0-core/pkg/id"
)

// ErrRateLimited indicates too many login attempts for one client and email.
var ErrRateLimited = errors.New("login: too many attempts")

// RateLimit bounds login attempts per (client, email) pair.
type RateLimit struct {
	// Attempts is the number of attempts allowed per Window.
	Attempts int

	// Window is the period over which Attempts are replenished.
	Window time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	window   time.Duration
	calls    int
	now      func() time.Time
}

func newRateLimiter(cfg RateLimit) (*rateLimiter, error) {
	if cfg.Attempts <= 0 || cfg.Window <= 0 {
		return nil, fmt.Errorf("login: rate limit needs positive attempts and window, got %d per %s", cfg.Attempts, cfg.Window)
	}
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(cfg.Attempts) / cfg.Window.Seconds()),
		burst:    cfg.Attempts,
		window:   cfg.Window,
		now:      time.Now,
	}, nil
}

// allow spends one attempt for the pair and reports whether it was available.
func (rl *rateLimiter) allow(clientID id.Identifier, email string) bool {
	key := clientID.Hex() + "/" + strings.ToLower(strings.TrimSpace(email))

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.calls++
	if rl.calls%sweepEvery == 0 {
		rl.cleanupVisitors(now)
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// cleanupVisitors drops pairs idle for a full window; their limiters are
// back at full burst anyway.
func (rl *rateLimiter) cleanupVisitors(now time.Time) {
	cutoff := now.Add(-rl.window)
	for key, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
		}
	}
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}
