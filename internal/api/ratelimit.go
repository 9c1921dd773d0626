package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterStaleThreshold  = 10 * time.Minute
)

// rateLimiter implements per-user rate limiting using a token bucket per
// user ID. File retrieval fans out to blob signing and content fetches, so
// it is limited per authenticated user rather than per IP. Cleanup of
// stale entries happens inline during allow calls.
type rateLimiter struct {
	mu          sync.Mutex
	users       map[string]*bucket
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a limiter refilling r tokens per second with the
// given burst.
func newRateLimiter(r float64, burst int) *rateLimiter {
	return &rateLimiter{
		users:       make(map[string]*bucket),
		limit:       rate.Limit(r),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

// allow reports whether userID may proceed, consuming one token.
func (rl *rateLimiter) allow(userID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	if now.Sub(rl.lastCleanup) > rateLimiterCleanupInterval {
		for k, b := range rl.users {
			if now.Sub(b.lastSeen) > rateLimiterStaleThreshold {
				delete(rl.users, k)
			}
		}
		rl.lastCleanup = now
	}

	b, exists := rl.users[userID]
	if !exists {
		limiter := rate.NewLimiter(rl.limit, rl.burst)
		rl.users[userID] = &bucket{limiter: limiter, lastSeen: now}
		limiter.Allow()
		return true
	}

	b.lastSeen = now
	return b.limiter.Allow()
}
