package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authModels "gatehouse/internal/auth/models"
	"gatehouse/internal/ratelimit"
	"gatehouse/internal/ratelimit/store/burst"
	"gatehouse/internal/ratelimit/store/window"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

type stubVerifier struct {
	principal *authModels.Principal
	err       error
}

func (v *stubVerifier) VerifyAccess(context.Context, string) (*authModels.Principal, error) {
	return v.principal, v.err
}

func newGuardedHandler(t *testing.T, verifier TokenVerifier) http.Handler {
	t.Helper()

	limiter := ratelimit.New(window.NewInMemoryStore(), burst.NewInMemoryStore(), ratelimit.Config{
		PerIP: ratelimit.Rule{Limit: 2, Window: time.Minute},
	})
	g := New(Config{}, []Check{
		NewRateLimitCheck(limiter),
		NewTokenCheck(verifier),
	})
	return g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestMiddlewareAttachesPrincipal(t *testing.T) {
	principal := &authModels.Principal{
		ID:        id.NewPrincipalID(),
		SessionID: id.NewSessionID(),
		Scopes:    []string{"read"},
	}

	limiter := ratelimit.New(window.NewInMemoryStore(), burst.NewInMemoryStore(), ratelimit.Config{
		PerIP: ratelimit.Rule{Limit: 10, Window: time.Minute},
	})
	g := New(Config{}, []Check{
		NewRateLimitCheck(limiter),
		NewTokenCheck(&stubVerifier{principal: principal}),
	})

	var captured *authModels.Principal
	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, principal.ID, captured.ID)
	assert.Equal(t, principal.SessionID, captured.SessionID)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
}

func TestMiddlewareMissingToken(t *testing.T) {
	limiter := ratelimit.New(window.NewInMemoryStore(), burst.NewInMemoryStore(), ratelimit.Config{})
	g := New(Config{}, []Check{
		NewRateLimitCheck(limiter),
		NewTokenCheck(&stubVerifier{err: dErrors.New(dErrors.CodeSignatureInvalid, "bad signature")}),
	})
	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "auth_required")
}

func TestMiddlewareExpiredTokenIsNotRefreshed(t *testing.T) {
	limiter := ratelimit.New(window.NewInMemoryStore(), burst.NewInMemoryStore(), ratelimit.Config{})
	g := New(Config{}, []Check{
		NewRateLimitCheck(limiter),
		NewTokenCheck(&stubVerifier{err: dErrors.New(dErrors.CodeTokenExpired, "token expired")}),
	})
	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token_expired")
}

func TestMiddlewareRateLimitRejection(t *testing.T) {
	handler := newGuardedHandler(t, &stubVerifier{principal: &authModels.Principal{
		ID:        id.NewPrincipalID(),
		SessionID: id.NewSessionID(),
	}})

	var lastCode int
	var lastRec *httptest.ResponseRecorder
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		req.Header.Set("Authorization", "Bearer some-token")
		lastRec = httptest.NewRecorder()
		handler.ServeHTTP(lastRec, req)
		lastCode = lastRec.Code
	}

	require.Equal(t, http.StatusTooManyRequests, lastCode)
	assert.NotEmpty(t, lastRec.Header().Get("Retry-After"))
	assert.Equal(t, "0", lastRec.Header().Get("X-RateLimit-Remaining"))
}
