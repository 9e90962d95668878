// Package requestcontext carries per-request values (request ID, injected
// clock) through context.Context so services stay free of ambient globals.
package requestcontext

import (
	"context"
	"time"
)

type requestIDKey struct{}
type nowKey struct{}

// WithRequestID returns a context carrying the request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request correlation ID, or "" when absent.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithNow pins the clock for the remainder of the request. Tests use this to
// make expiry and window arithmetic deterministic.
func WithNow(ctx context.Context, now time.Time) context.Context {
	return context.WithValue(ctx, nowKey{}, now)
}

// Now returns the pinned clock value if one was injected, otherwise the wall
// clock. All time-sensitive checks in the guard path go through this.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(nowKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
