package service

import (
	"context"
	"errors"

	"gatehouse/internal/auth/models"
	sessionStore "gatehouse/internal/session/store"
	"gatehouse/internal/token"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

// Refresh exchanges a valid refresh token for a new pair, advancing the
// session's rotation counter. Presenting a superseded refresh token is
// treated as theft: the whole session is revoked and the caller gets
// reuse_detected, forcing re-authentication on every device of that
// session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenResult, error) {
	claims, err := s.tokens.Verify(ctx, refreshToken, token.UseRefresh)
	if err != nil {
		s.authFailure(ctx, "refresh_token_invalid", "error", err.Error())
		return nil, err
	}

	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeTokenMalformed, "token carries an invalid session ID")
	}

	session, err := s.sessions.Find(ctx, sessionID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.authFailure(ctx, "session_missing", "session_id", claims.SessionID)
			return nil, dErrors.New(dErrors.CodeSessionRevoked, "session is no longer valid")
		}
		return nil, err
	}
	if session.Revoked {
		s.authFailure(ctx, "session_revoked", "session_id", claims.SessionID)
		return nil, dErrors.New(dErrors.CodeSessionRevoked, "session has been revoked")
	}

	// A blacklisted refresh JTI on a live session means this token was
	// already spent during a previous rotation. Same theft signal as a
	// stale counter.
	revoked, err := s.revoked.IsRevoked(ctx, claims.JTI())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "revocation check failed")
	}
	if revoked {
		return nil, s.reuseDetected(ctx, sessionID, claims)
	}
	if session.Rotation != claims.Rotation {
		return nil, s.reuseDetected(ctx, sessionID, claims)
	}

	pair, err := s.mintAndBind(ctx, session)
	if err != nil {
		if errors.Is(err, sessionStore.ErrRotationMismatch) {
			// Lost the race against a concurrent refresh of the same token.
			return nil, s.reuseDetected(ctx, sessionID, claims)
		}
		return nil, err
	}

	// The presented token is spent; blacklist it for its remaining life so
	// any replay is caught even before the counter compare.
	if err := s.revoked.Revoke(ctx, claims.JTI(), s.tokens.RefreshTTL()); err != nil {
		s.logger.ErrorContext(ctx, "failed to blacklist spent refresh token",
			"session_id", claims.SessionID,
			"error", err.Error(),
		)
	}

	if s.metrics != nil {
		s.metrics.IncrementTokensIssued("refresh")
	}
	s.logAudit(ctx, "token_refreshed",
		"principal_id", claims.PrincipalID,
		"session_id", claims.SessionID,
	)

	return tokenResult(pair, session), nil
}

// reuseDetected revokes the compromised session before surfacing the error.
func (s *Service) reuseDetected(ctx context.Context, sessionID id.SessionID, claims *token.Claims) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		s.logger.ErrorContext(ctx, "failed to revoke session after reuse detection",
			"session_id", sessionID.String(),
			"error", err.Error(),
		)
	}
	if s.metrics != nil {
		s.metrics.IncrementReuseDetected()
	}
	s.logAudit(ctx, "refresh_token_reuse_detected",
		"principal_id", claims.PrincipalID,
		"session_id", sessionID.String(),
		"rotation", claims.Rotation,
	)
	return dErrors.New(dErrors.CodeReuseDetected, "refresh token reuse detected")
}
