// Package ratelimit bounds how often a principal may place orders.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether the caller identified by key may proceed.
// retryAfter is meaningful only when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// Counter is the store behind FixedWindow.
type Counter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// FixedWindow allows limit requests per window and key, counted in Redis so
// every instance shares the budget.
type FixedWindow struct {
	counter Counter
	limit   int64
	window  time.Duration
	prefix  string
}

// NewFixedWindow creates a Redis-backed limiter.
func NewFixedWindow(counter Counter, prefix string, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{counter: counter, limit: int64(limit), window: window, prefix: prefix}
}

// Allow implements Limiter.
func (f *FixedWindow) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	count, left, err := f.counter.IncrWindow(ctx, fmt.Sprintf("rl:%s:%s", f.prefix, key), f.window)
	if err != nil {
		return false, 0, err
	}
	if count > f.limit {
		return false, left, nil
	}
	return true, 0, nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local is a per-key token bucket kept in process memory. It refills limit
// tokens per window with a burst of limit.
type Local struct {
	every   rate.Limit
	burst   int
	ttl     time.Duration
	mu      sync.Mutex
	buckets map[string]*visitor
	lookups int
}

// NewLocal creates an in-process limiter.
func NewLocal(limit int, window time.Duration) *Local {
	if limit <= 0 {
		limit = 1
	}
	return &Local{
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		ttl:     10 * window,
		buckets: make(map[string]*visitor),
	}
}

// Allow implements Limiter.
func (l *Local) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	lim := l.bucket(key, time.Now())

	r := lim.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay, nil
	}
	return true, 0, nil
}

func (l *Local) bucket(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Evict idle buckets every few thousand lookups
	l.lookups++
	if l.lookups >= 5000 {
		for k, v := range l.buckets {
			if now.Sub(v.lastSeen) >= l.ttl {
				delete(l.buckets, k)
			}
		}
		l.lookups = 0
	}

	if v, ok := l.buckets[key]; ok {
		v.lastSeen = now
		return v.limiter
	}

	lim := rate.NewLimiter(l.every, l.burst)
	l.buckets[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}
