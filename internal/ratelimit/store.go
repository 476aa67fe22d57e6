// Package ratelimit enforces a fixed-window request budget per caller. The
// counters live behind CounterStore so that a single process can use an
// in-memory map while a fleet of instances shares counters in redis.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// CounterStore atomically increments the counter for key within the current
// window. It returns the count after the increment and the instant the
// current window started. A window that has fully elapsed is reset before the
// increment is applied.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int64, windowStart time.Time, err error)
}

type counter struct {
	count       int64
	windowStart time.Time
	window      time.Duration
}

// MemoryStore is a process-local CounterStore. Counters are invisible to
// other instances and are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// Increment implements CounterStore.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || now.Sub(c.windowStart) >= window {
		c = &counter{windowStart: now, window: window}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.windowStart, nil
}

// Sweep drops counters whose own window has elapsed. It keeps the map from
// growing without bound when many distinct callers pass through.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, c := range s.counters {
		if now.Sub(c.windowStart) >= c.window {
			delete(s.counters, k)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len returns the number of tracked counters.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
