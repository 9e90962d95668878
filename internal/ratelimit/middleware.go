package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"gatehouse/internal/platform/middleware"
	"gatehouse/internal/ratelimit/models"
	"gatehouse/internal/transport/httputil"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

// SetHeaders writes the rate-limit feedback headers for the binding scope.
// Accepted and rejected responses both carry them.
func SetHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
	}
}

// retryAfterSeconds rounds up so clients never retry a moment too early.
func retryAfterSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Middleware enforces the limiter on routes outside the authenticated
// guard, scoping on client IP and endpoint pattern. Store failures fail
// open: a counter-store outage must not take the service down.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := s.Check(r.Context(), Request{
			ClientIP: middleware.ClientIPFromRequest(r),
			Endpoint: r.URL.Path,
		})
		if err != nil && !dErrors.HasCode(err, dErrors.CodeRateLimitExceeded) {
			if s.metrics != nil {
				s.metrics.IncrementRateLimitFailOpen()
			}
			s.logger.ErrorContext(r.Context(), "rate limit check failed, failing open",
				"request_id", requestcontext.RequestID(r.Context()),
				"error", err.Error(),
			)
			next.ServeHTTP(w, r)
			return
		}

		if decision != nil {
			SetHeaders(w, decision.Binding)
		}
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
