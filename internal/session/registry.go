// Package session maintains the registry of authenticated sessions. The
// registry is the authority on whether a presented token's session is still
// live, and it owns the rotation counter that detects refresh-token replay.
package session

import (
	"context"
	"log/slog"
	"time"

	"gatehouse/internal/platform/metrics"
	"gatehouse/internal/session/models"
	"gatehouse/internal/session/store"
	"gatehouse/internal/token/store/revocation"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

// Config carries the registry's session lifecycle parameters.
type Config struct {
	// SessionTTL bounds how long a session may live regardless of activity.
	// Normally this matches the refresh-token TTL.
	SessionTTL time.Duration

	// AccessTokenTTL and RefreshTokenTTL bound how long revoked-session JTIs
	// must stay blacklisted.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Registry is the session service used by the auth flows and the request
// guard.
type Registry struct {
	store   store.Store
	revoked revocation.List
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type RegistryOption func(*Registry)

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

func NewRegistry(st store.Store, revoked revocation.List, cfg Config, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:   st,
		revoked: revoked,
		cfg:     cfg,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create opens a new session for a principal. The User-Agent is parsed into
// device metadata for the sessions listing.
func (r *Registry) Create(ctx context.Context, principalID id.PrincipalID, scopes []string, rawUserAgent string) (*models.Session, error) {
	now := requestcontext.Now(ctx)
	device := ParseDevice(rawUserAgent)

	session := &models.Session{
		ID:                id.NewSessionID(),
		PrincipalID:       principalID,
		DeviceName:        device.Name,
		DeviceFingerprint: device.Fingerprint,
		Scopes:            scopes,
		CreatedAt:         now,
		LastSeenAt:        now,
		ExpiresAt:         now.Add(r.cfg.SessionTTL),
	}
	if err := r.store.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeOf(err), "failed to create session")
	}

	if r.metrics != nil {
		r.metrics.IncrementActiveSessions(1)
	}
	r.logger.InfoContext(ctx, "session created",
		"event", "session_created",
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", session.ID.String(),
		"principal_id", principalID.String(),
		"device", device.Name,
	)
	return session, nil
}

// Find returns the session, rejecting expired ones.
func (r *Registry) Find(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	session, err := r.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeSessionRevoked, "session has expired")
	}
	return session, nil
}

// Touch records activity on a session. Failures are logged and swallowed;
// activity tracking never blocks or fails a request.
func (r *Registry) Touch(ctx context.Context, sessionID id.SessionID) {
	if err := r.store.Touch(ctx, sessionID, requestcontext.Now(ctx)); err != nil {
		r.logger.WarnContext(ctx, "failed to record session activity",
			"session_id", sessionID.String(),
			"error", err.Error(),
		)
	}
}

// IsActive reports whether the session exists, is unrevoked, and is within
// its lifetime. This is the hot-path check on every guarded request.
func (r *Registry) IsActive(ctx context.Context, sessionID id.SessionID) (bool, error) {
	session, err := r.store.FindByID(ctx, sessionID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return !session.Revoked && !session.IsExpired(requestcontext.Now(ctx)), nil
}

// Revoke terminates a session and blacklists its outstanding token JTIs so
// unexpired tokens die with it. Revoking twice is a no-op.
func (r *Registry) Revoke(ctx context.Context, sessionID id.SessionID) error {
	now := requestcontext.Now(ctx)
	session, err := r.store.Revoke(ctx, sessionID, now)
	if err != nil {
		return err
	}

	r.blacklistTokens(ctx, session)

	if r.metrics != nil {
		r.metrics.IncrementSessionsRevoked(1)
		r.metrics.IncrementActiveSessions(-1)
	}
	r.logger.InfoContext(ctx, "session revoked",
		"event", "session_revoked",
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", sessionID.String(),
		"principal_id", session.PrincipalID.String(),
	)
	return nil
}

// RevokeAllForPrincipal terminates every session of a principal, continuing
// past individual failures. Returns the number revoked and the first error
// encountered, if any.
func (r *Registry) RevokeAllForPrincipal(ctx context.Context, principalID id.PrincipalID) (int, error) {
	sessions, err := r.store.ListByPrincipal(ctx, principalID)
	if err != nil {
		return 0, err
	}

	revoked := 0
	var firstErr error
	for _, session := range sessions {
		if session.Revoked {
			continue
		}
		if err := r.Revoke(ctx, session.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		revoked++
	}
	return revoked, firstErr
}

// List returns the principal's sessions that are still within their
// lifetime, revoked ones included so clients can see terminated devices.
func (r *Registry) List(ctx context.Context, principalID id.PrincipalID) ([]*models.Session, error) {
	sessions, err := r.store.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	out := sessions[:0]
	for _, session := range sessions {
		if !session.IsExpired(now) {
			out = append(out, session)
		}
	}
	return out, nil
}

// AdvanceRotation performs the refresh-token rotation compare-and-swap.
// A stale counter surfaces as store.ErrRotationMismatch.
func (r *Registry) AdvanceRotation(ctx context.Context, sessionID id.SessionID, rot store.Rotation) (*models.Session, error) {
	return r.store.AdvanceRotation(ctx, sessionID, rot)
}

// PruneExpired removes aged-out sessions. Called by the cleanup worker.
func (r *Registry) PruneExpired(ctx context.Context) (int, error) {
	return r.store.DeleteExpired(ctx, requestcontext.Now(ctx))
}

func (r *Registry) blacklistTokens(ctx context.Context, session *models.Session) {
	if r.revoked == nil {
		return
	}
	if session.AccessTokenJTI != "" {
		if err := r.revoked.Revoke(ctx, session.AccessTokenJTI, r.cfg.AccessTokenTTL); err != nil {
			r.logger.ErrorContext(ctx, "failed to blacklist access token",
				"session_id", session.ID.String(),
				"error", err.Error(),
			)
		}
	}
	if session.RefreshTokenJTI != "" {
		if err := r.revoked.Revoke(ctx, session.RefreshTokenJTI, r.cfg.RefreshTokenTTL); err != nil {
			r.logger.ErrorContext(ctx, "failed to blacklist refresh token",
				"session_id", session.ID.String(),
				"error", err.Error(),
			)
		}
	}
}
