package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// InMemoryStore keeps counters in a sync.Map of atomics. Bounded increments
// run as compare-and-swap loops, so two concurrent reservations at the
// ceiling cannot both slip through. TTLs are ignored; quota keys embed
// their window start, and stale windows are simply never read again.
type InMemoryStore struct {
	counters sync.Map // string -> *int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Reserve(_ context.Context, key string, limit int, _ time.Duration) (int, bool, error) {
	counter := s.counter(key)
	for {
		current := atomic.LoadInt64(counter)
		if current >= int64(limit) {
			return int(current), false, nil
		}
		if atomic.CompareAndSwapInt64(counter, current, current+1) {
			return int(current + 1), true, nil
		}
	}
}

func (s *InMemoryStore) Release(_ context.Context, key string) error {
	counter := s.counter(key)
	for {
		current := atomic.LoadInt64(counter)
		if current <= 0 {
			return nil
		}
		if atomic.CompareAndSwapInt64(counter, current, current-1) {
			return nil
		}
	}
}

func (s *InMemoryStore) Add(_ context.Context, key string, delta int, _ time.Duration) error {
	counter := s.counter(key)
	for {
		current := atomic.LoadInt64(counter)
		next := current + int64(delta)
		if next < 0 {
			next = 0
		}
		if atomic.CompareAndSwapInt64(counter, current, next) {
			return nil
		}
	}
}

func (s *InMemoryStore) Count(_ context.Context, key string) (int, error) {
	value, ok := s.counters.Load(key)
	if !ok {
		return 0, nil
	}
	return int(atomic.LoadInt64(value.(*int64))), nil
}

func (s *InMemoryStore) counter(key string) *int64 {
	value, ok := s.counters.Load(key)
	if !ok {
		value, _ = s.counters.LoadOrStore(key, new(int64))
	}
	return value.(*int64)
}
