package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// limiterCleanupThreshold is the minimum map size before idle entries are pruned.
	limiterCleanupThreshold = 500
	// limiterMaxIdleAge is how long an unused key is kept.
	limiterMaxIdleAge = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter hands out one token bucket per key, pruning idle keys inline.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	clock   func() time.Time
}

// NewKeyedRateLimiter allows perMinute events per key with an equal burst.
func NewKeyedRateLimiter(perMinute int, clock func() time.Time) *KeyedRateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if clock == nil {
		clock = time.Now
	}
	return &KeyedRateLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		clock:   clock,
	}
}

// Allow reports whether key may proceed now.
func (l *KeyedRateLimiter) Allow(key string) bool {
	now := l.clock()
	return l.limiterFor(key, now).AllowN(now, 1)
}

func (l *KeyedRateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > limiterCleanupThreshold {
		cutoff := now.Add(-limiterMaxIdleAge)
		for existing, entry := range l.entries {
			if entry.lastSeen.Before(cutoff) {
				delete(l.entries, existing)
			}
		}
	}

	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}
