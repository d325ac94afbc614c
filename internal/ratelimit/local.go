package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// localLimiter is the in-process degradation path: one token bucket per key,
// refilling at limit/window. It is not shared across replicas, so it only
// approximates the Redis window, but it still bounds a runaway caller.
type localLimiter struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
}

type localBucket struct {
	lim   *rate.Limiter
	limit int64
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{buckets: make(map[string]*localBucket)}
}

func (l *localLimiter) check(key string, limit int64, window time.Duration) LimitResult {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok || b.limit != limit {
		b = &localBucket{
			lim:   rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), int(limit)),
			limit: limit,
		}
		l.buckets[key] = b
	}
	l.mu.Unlock()

	now := time.Now()
	allowed := b.lim.Allow()

	remaining := int64(b.lim.Tokens())
	if remaining < 0 {
		remaining = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = window / 2
	}

	return LimitResult{
		Allowed:    allowed,
		Remaining:  remaining,
		ResetAt:    now.Add(window),
		RetryAfter: retryAfter,
	}
}
