package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatehouse/internal/guard"
	"gatehouse/internal/platform/middleware"
	"gatehouse/internal/ratelimit"
)

// NewRouter wires the route tree. Public auth endpoints sit behind the
// plain rate-limit middleware; everything under the guard additionally
// gets token and session validation, with the resolved principal attached
// to the request context.
func NewRouter(h *Handler, g *guard.Guard, limiter *ratelimit.Service, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Unauthenticated endpoints still count against IP and endpoint
	// limits; login is the classic brute-force target.
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/refresh", h.handleRefresh)
	})

	r.Group(func(r chi.Router) {
		r.Use(g.Middleware)
		r.Post("/auth/logout", h.handleLogout)
		r.Post("/auth/logout_all", h.handleLogoutAll)
		r.Get("/auth/sessions", h.handleSessions)
		r.Post("/auth/password", h.handlePasswordChange)
		r.Get("/quota/{accountID}", h.handleQuotaWindow)
	})

	return r
}
