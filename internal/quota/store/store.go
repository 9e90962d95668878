// Package store provides bounded counters for external-API quota windows.
// Increments are atomic and never exceed the limit; a reservation that
// would cross the ceiling is rejected without counting.
package store

import (
	"context"
	"time"
)

// Store is the counter backend for quota windows. Keys are fully qualified
// window keys; the service owns key construction and window arithmetic.
type Store interface {
	// Reserve atomically increments the counter unless doing so would
	// exceed limit. Returns the resulting count and whether the
	// reservation was admitted.
	Reserve(ctx context.Context, key string, limit int, ttl time.Duration) (int, bool, error)

	// Release decrements a counter previously reserved, never below zero.
	Release(ctx context.Context, key string) error

	// Add unconditionally adjusts a secondary counter, used for
	// per-endpoint breakdowns that carry no limit of their own.
	Add(ctx context.Context, key string, delta int, ttl time.Duration) error

	// Count reads the current value of a counter. Missing keys read zero.
	Count(ctx context.Context, key string) (int, error)
}
