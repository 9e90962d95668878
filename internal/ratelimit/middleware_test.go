package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/ratelimit/store/burst"
	"gatehouse/internal/ratelimit/store/window"
	dErrors "gatehouse/pkg/domain-errors"
)

type failingWindowStore struct{}

func (failingWindowStore) Allow(context.Context, string, int, time.Duration, time.Time) (window.Slot, error) {
	return window.Slot{}, dErrors.New(dErrors.CodeInternal, "store unavailable")
}

func newTestHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareSetsFeedbackHeaders(t *testing.T) {
	svc := New(window.NewInMemoryStore(), burst.NewInMemoryStore(), Config{
		PerIP: Rule{Limit: 2, Window: time.Minute},
	})
	handler := svc.Middleware(newTestHandler())

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestMiddlewareRejectsWithRetryAfter(t *testing.T) {
	svc := New(window.NewInMemoryStore(), burst.NewInMemoryStore(), Config{
		PerIP: Rule{Limit: 1, Window: time.Minute},
	})
	handler := svc.Middleware(newTestHandler())

	for i := range 2 {
		req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if i == 0 {
			require.Equal(t, http.StatusOK, rec.Code)
			continue
		}
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.JSONEq(t,
			`{"error":{"code":"rate_limit_exceeded","message":"rate limit exceeded for scope ip"}}`,
			rec.Body.String(),
		)
	}
}

func TestMiddlewareFailsOpenOnStoreError(t *testing.T) {
	svc := New(failingWindowStore{}, burst.NewInMemoryStore(), Config{
		PerIP: Rule{Limit: 1, Window: time.Minute},
	})
	handler := svc.Middleware(newTestHandler())

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "a counter-store outage must not reject traffic")
}
