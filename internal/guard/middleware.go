package guard

import (
	"net/http"
	"strings"

	"gatehouse/internal/platform/middleware"
	"gatehouse/internal/ratelimit"
	"gatehouse/internal/transport/httputil"
	"gatehouse/pkg/requestcontext"
)

// Middleware runs the guard in front of a handler tree. Every admitted
// request carries the resolved principal in its context; every response,
// accepted or rejected, carries the binding scope's rate-limit headers.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := &Target{
			ClientIP:    middleware.ClientIPFromRequest(r),
			Endpoint:    r.URL.Path,
			BearerToken: bearerToken(r),
		}

		err := g.Admit(r.Context(), target)

		if target.RateLimit != nil {
			ratelimit.SetHeaders(w, target.RateLimit.Binding)
		}
		if err != nil {
			g.logRejection(r, target, err)
			httputil.WriteError(w, r, err)
			return
		}

		ctx := r.Context()
		if target.Principal != nil {
			ctx = WithPrincipal(ctx, target.Principal)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) logRejection(r *http.Request, target *Target, err error) {
	attrs := []any{
		"endpoint", target.Endpoint,
		"client_ip", target.ClientIP,
		"bearer_token", target.BearerToken,
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err.Error(),
	}
	if target.Principal != nil {
		attrs = append(attrs, "principal_id", target.Principal.ID.String())
	}
	g.logger.WarnContext(r.Context(), "request rejected", RedactAttrs(attrs)...)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
