// Package rate holds the fixed-window limiter guarding write endpoints.
package rate

import (
	"sync"
	"time"
)

type Limiter interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration)
}

// MemoryLimiter counts hits per key in fixed windows. It is local to one
// process.
type MemoryLimiter struct {
	mu        sync.Mutex
	store     map[string]*bucket
	now       func() time.Time
	lastSweep time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
	window  time.Duration
}

const sweepEvery = time.Minute

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{store: make(map[string]*bucket), now: time.Now}
}

// Allow records a hit for key and reports whether it fits in limit. The
// duration is the time left until the window resets. A non-positive limit
// disables the check.
func (m *MemoryLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 {
		return true, 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	b, ok := m.store[key]
	if !ok || now.After(b.resetAt) || b.window != window {
		b = &bucket{count: 0, resetAt: now.Add(window), window: window}
		m.store[key] = b
	}

	if b.count >= limit {
		return false, b.resetAt.Sub(now)
	}

	b.count++
	return true, b.resetAt.Sub(now)
}

// Len reports how many keys are tracked.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// sweep drops expired buckets so idle keys do not accumulate.
func (m *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < sweepEvery {
		return
	}
	m.lastSweep = now
	for k, b := range m.store {
		if now.After(b.resetAt) {
			delete(m.store, k)
		}
	}
}
