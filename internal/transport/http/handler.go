// Package httptransport is the thin HTTP layer. Handlers decode, delegate
// to domain services and encode; policy lives in the services and the
// guard.
package httptransport

import (
	"context"
	"log/slog"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/quota"
	sessionModels "gatehouse/internal/session/models"
	id "gatehouse/pkg/domain"
)

// AuthService is the authentication surface the handlers delegate to.
type AuthService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResult, error)
	Logout(ctx context.Context, sessionID id.SessionID) error
	LogoutAll(ctx context.Context, principalID id.PrincipalID) (int, error)
	Sessions(ctx context.Context, principalID id.PrincipalID) ([]*sessionModels.Session, error)
}

// CredentialRegistrar manages stored credentials.
type CredentialRegistrar interface {
	Register(ctx context.Context, username, password string, scopes []string) (*models.Credential, error)
	SetPassword(ctx context.Context, username, password string) error
}

// QuotaReader exposes window usage for connected upstream accounts.
type QuotaReader interface {
	WindowFor(ctx context.Context, accountID id.AccountID) (quota.Window, error)
}

// HealthChecker reports backing-store connectivity.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Handler struct {
	auth        AuthService
	credentials CredentialRegistrar
	quotas      QuotaReader
	health      HealthChecker
	logger      *slog.Logger
}

type HandlerOption func(*Handler)

// WithHealthChecker attaches a backing-store health probe to /healthz.
func WithHealthChecker(health HealthChecker) HandlerOption {
	return func(h *Handler) { h.health = health }
}

func NewHandler(auth AuthService, credentials CredentialRegistrar, quotas QuotaReader, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		auth:        auth,
		credentials: credentials,
		quotas:      quotas,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}
