// Package mocks provides in-memory stand-ins for the Redis-backed stores.
package mocks

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	expires time.Time
}

// MockCache is an in-memory implementation of the rate counter and job lock
// stores. Setting Err makes every call fail, as an unreachable Redis would.
type MockCache struct {
	mu      sync.Mutex
	windows map[string]*window
	locks   map[string]time.Time
	now     func() time.Time

	Err       error
	LockCalls []string
	IncrCalls int
}

// NewMockCache creates a new mock cache instance.
func NewMockCache() *MockCache {
	return &MockCache{
		windows: make(map[string]*window),
		locks:   make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for expirations.
func (m *MockCache) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// IncrWindow counts a hit in the window of key and returns the count and the
// time left in the window.
func (m *MockCache) IncrWindow(_ context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.IncrCalls++
	if m.Err != nil {
		return 0, 0, m.Err
	}

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.expires) {
		w = &window{expires: now.Add(ttl)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.expires.Sub(now), nil
}

// AcquireLock takes key for ttl unless it is already held.
func (m *MockCache) AcquireLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LockCalls = append(m.LockCalls, key)
	if m.Err != nil {
		return false, m.Err
	}

	now := m.now()
	if until, held := m.locks[key]; held && now.Before(until) {
		return false, nil
	}
	m.locks[key] = now.Add(ttl)
	return true, nil
}
