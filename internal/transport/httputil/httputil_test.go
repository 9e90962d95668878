package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		code   dErrors.Code
		status int
	}{
		{dErrors.CodeNotFound, http.StatusNotFound},
		{dErrors.CodeInvalidInput, http.StatusBadRequest},
		{dErrors.CodeWeakSecret, http.StatusBadRequest},
		{dErrors.CodeUnauthorized, http.StatusUnauthorized},
		{dErrors.CodeTokenExpired, http.StatusUnauthorized},
		{dErrors.CodeReuseDetected, http.StatusUnauthorized},
		{dErrors.CodeConflict, http.StatusConflict},
		{dErrors.CodeRateLimitExceeded, http.StatusTooManyRequests},
		{dErrors.CodeQuotaExhausted, http.StatusServiceUnavailable},
		{dErrors.CodeTimeout, http.StatusGatewayTimeout},
		{dErrors.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusFor(tc.code), "code %s", tc.code)
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(requestcontext.WithRequestID(req.Context(), "req-123"))
	rec := httptest.NewRecorder()

	WriteError(rec, req, dErrors.New(dErrors.CodeSessionRevoked, "session has been revoked"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":{"code":"session_revoked","message":"session has been revoked","request_id":"req-123"}}`, rec.Body.String())
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, dErrors.Wrap(errors.New("dial tcp: connection refused"), dErrors.CodeInternal, "store unavailable"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestWriteErrorNonDomainError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}
