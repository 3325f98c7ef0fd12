package contact

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces a sliding window per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter is a process-local sliding log. It suits a single instance.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string][]time.Time
	calls  int
}

// NewMemoryLimiter returns nil when limit or window is not positive.
func NewMemoryLimiter(limit int, window time.Duration, clock func() time.Time) *MemoryLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	if l == nil {
		return Decision{Allowed: true}, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%128 == 0 {
		l.pruneExpiredLocked(cutoff)
	}

	hits := l.store[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	if len(hits) >= l.limit {
		l.store[key] = hits
		return Decision{Allowed: false, RetryAfter: hits[0].Add(l.window).Sub(now)}, nil
	}
	hits = append(hits, now)
	l.store[key] = hits
	return Decision{Allowed: true, Remaining: l.limit - len(hits)}, nil
}

func (l *MemoryLimiter) pruneExpiredLocked(cutoff time.Time) {
	for key, hits := range l.store {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(l.store, key)
		}
	}
}
