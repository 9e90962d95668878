// Package window implements sliding-window request counting. Each key holds
// the timestamps of recently admitted requests; old entries age out
// continuously rather than resetting on a boundary.
package window

import (
	"context"
	"time"
)

// Slot is the raw outcome of one sliding-window admission attempt.
type Slot struct {
	Allowed bool
	// Count is the number of admitted requests currently inside the window,
	// including this one when Allowed.
	Count int
	// OldestAt is the timestamp of the oldest counted request, used to
	// compute when capacity frees up. Zero when the window is empty.
	OldestAt time.Time
}

// Store records admissions against a sliding window. Implementations must
// never lose concurrent increments; momentary overcounting is acceptable,
// undercounting is not.
type Store interface {
	// Allow attempts to admit one request at the given instant. Rejected
	// requests are not recorded.
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Slot, error)
}
