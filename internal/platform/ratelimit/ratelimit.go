// Package ratelimit implements fixed window request limits.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter allows up to a fixed number of hits per key in each window. When a
// hit is refused, Allow returns how long until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps counters in process memory. Counters are not shared
// between instances.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	windows map[string]*window
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.sweep(now)
		w = &window{resetAt: now.Add(l.period)}
		l.windows[key] = w
	}

	w.count++
	if w.count > l.limit {
		return false, w.resetAt.Sub(now), nil
	}
	return true, 0, nil
}

// sweep drops expired windows.
func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}
