package burst

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// InMemoryStore keeps one rate.Limiter per key. rate.Limiter is internally
// synchronized, so no further locking is needed around Take.
type InMemoryStore struct {
	limiters sync.Map // string -> *rate.Limiter
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Take(_ context.Context, key string, capacity int, refillPerSecond float64, now time.Time) (bool, error) {
	value, ok := s.limiters.Load(key)
	if !ok {
		value, _ = s.limiters.LoadOrStore(key, rate.NewLimiter(rate.Limit(refillPerSecond), capacity))
	}
	limiter := value.(*rate.Limiter)
	return limiter.AllowN(now, 1), nil
}
