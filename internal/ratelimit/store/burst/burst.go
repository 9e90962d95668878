// Package burst implements the token-bucket guard applied after the sliding
// window passes. The bucket absorbs short spikes without permanently
// penalizing a client whose overall window budget is intact.
package burst

import (
	"context"
	"time"
)

// Store holds one lazily created token bucket per identifier. Take refills
// the bucket for elapsed time, then consumes a token if one is available.
type Store interface {
	Take(ctx context.Context, key string, capacity int, refillPerSecond float64, now time.Time) (bool, error)
}
