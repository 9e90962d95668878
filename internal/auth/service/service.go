// Package service implements the authentication flows: login, token
// refresh with rotation, logout and session listing. It composes the
// credential verifier, token issuer, session registry and revocation list
// behind a single service the transport layer talks to.
package service

import (
	"context"
	"log/slog"
	"time"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/platform/metrics"
	sessionModels "gatehouse/internal/session/models"
	sessionStore "gatehouse/internal/session/store"
	"gatehouse/internal/token"
	id "gatehouse/pkg/domain"
)

// CredentialSource supplies credential lookups. Error contract: lookups
// return a not_found domain error when no credential exists; the service
// maps that to a generic authentication failure so usernames cannot be
// probed.
type CredentialSource interface {
	FindByUsername(ctx context.Context, username string) (*models.Credential, error)
}

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	Verify(ctx context.Context, password, hash string) error
}

// TokenIssuer mints and verifies signed token pairs.
type TokenIssuer interface {
	IssuePair(ctx context.Context, principalID id.PrincipalID, sessionID id.SessionID, scopes []string, rotation int) (*token.Pair, error)
	Verify(ctx context.Context, tokenString, expectedUse string) (*token.Claims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// SessionRegistry is the session lifecycle surface the auth flows need.
type SessionRegistry interface {
	Create(ctx context.Context, principalID id.PrincipalID, scopes []string, rawUserAgent string) (*sessionModels.Session, error)
	Find(ctx context.Context, sessionID id.SessionID) (*sessionModels.Session, error)
	Touch(ctx context.Context, sessionID id.SessionID)
	IsActive(ctx context.Context, sessionID id.SessionID) (bool, error)
	Revoke(ctx context.Context, sessionID id.SessionID) error
	RevokeAllForPrincipal(ctx context.Context, principalID id.PrincipalID) (int, error)
	List(ctx context.Context, principalID id.PrincipalID) ([]*sessionModels.Session, error)
	AdvanceRotation(ctx context.Context, sessionID id.SessionID, rot sessionStore.Rotation) (*sessionModels.Session, error)
}

// RevocationList tracks blacklisted token JTIs.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Service wires the authentication collaborators together.
type Service struct {
	credentials CredentialSource
	passwords   PasswordVerifier
	tokens      TokenIssuer
	sessions    SessionRegistry
	revoked     RevocationList
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	credentials CredentialSource,
	passwords PasswordVerifier,
	tokens TokenIssuer,
	sessions SessionRegistry,
	revoked RevocationList,
	opts ...Option,
) *Service {
	svc := &Service{
		credentials: credentials,
		passwords:   passwords,
		tokens:      tokens,
		sessions:    sessions,
		revoked:     revoked,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}
