package memory

import (
	"context"
	"sync"
	"time"
)

// CounterStore is an in-memory implementation of app.CounterStore with
// fixed-window semantics matching the Redis script.
type CounterStore struct {
	mu       sync.Mutex
	clock    func() time.Time
	counters map[string]windowCounter
}

type windowCounter struct {
	count   int64
	resetAt time.Time
}

func NewCounterStore() *CounterStore {
	return &CounterStore{
		clock:    time.Now,
		counters: make(map[string]windowCounter),
	}
}

// NewCounterStoreWithClock is test-only for deterministic windows.
func NewCounterStoreWithClock(clock func() time.Time) *CounterStore {
	s := NewCounterStore()
	s.clock = clock
	return s
}

func (s *CounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = windowCounter{count: 1, resetAt: now.Add(window)}
	} else {
		c.count++
	}
	s.counters[key] = c
	return c.count, c.resetAt, nil
}
