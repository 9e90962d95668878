package window

import (
	"context"
	"sync"
	"time"

	psync "gatehouse/pkg/platform/sync"
)

// InMemoryStore keeps per-key timestamp lists in a sync.Map with sharded
// per-key locking. One hot key never blocks requests on another key.
type InMemoryStore struct {
	entries sync.Map // string -> *entry
	locks   psync.ShardedMutex
}

type entry struct {
	timestamps []time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Slot, error) {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	value, _ := s.entries.LoadOrStore(key, &entry{})
	e := value.(*entry)

	e.prune(now.Add(-window))

	if len(e.timestamps) >= limit {
		return Slot{
			Allowed:  false,
			Count:    len(e.timestamps),
			OldestAt: e.timestamps[0],
		}, nil
	}

	e.timestamps = append(e.timestamps, now)
	slot := Slot{
		Allowed:  true,
		Count:    len(e.timestamps),
		OldestAt: e.timestamps[0],
	}
	return slot, nil
}

// prune drops timestamps at or before the cutoff. Timestamps are
// append-only in time order, so a linear scan from the front suffices.
func (e *entry) prune(cutoff time.Time) {
	idx := 0
	for idx < len(e.timestamps) && !e.timestamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		e.timestamps = append(e.timestamps[:0], e.timestamps[idx:]...)
	}
}
