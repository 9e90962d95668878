// Package httputil carries the JSON response conventions shared by every
// handler: one envelope shape, one error shape, one code-to-status mapping.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

// ErrorBody is the wire shape of every rejection. Code is stable and
// machine-readable; Message is for humans. RequestID is the opaque
// correlation id for support, never an internal identifier.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload) //nolint:errcheck
	}
}

// WriteError maps a domain error to its HTTP status and writes the error
// envelope. Non-domain errors collapse to an opaque 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	body := ErrorBody{
		Code:      string(code),
		Message:   publicMessage(code, err),
		RequestID: requestcontext.RequestID(r.Context()),
	}
	WriteJSON(w, StatusFor(code), errorEnvelope{Error: body})
}

// StatusFor maps a domain error code to its HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeInvalidInput, dErrors.CodeValidation, dErrors.CodeWeakSecret:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized, dErrors.CodeAuthRequired,
		dErrors.CodeTokenMalformed, dErrors.CodeSignatureInvalid,
		dErrors.CodeTokenExpired, dErrors.CodeTokenRevoked,
		dErrors.CodeSessionRevoked, dErrors.CodeReuseDetected:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case dErrors.CodeQuotaExhausted:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the domain error's message for client-caused
// rejections and a generic message otherwise, so internals never leak.
func publicMessage(code dErrors.Code, err error) string {
	switch code {
	case dErrors.CodeInternal, dErrors.CodeTimeout:
		return "internal error"
	default:
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			return domainErr.Message
		}
		return "request failed"
	}
}
