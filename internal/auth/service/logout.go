package service

import (
	"context"

	sessionModels "gatehouse/internal/session/models"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

// Logout revokes one session. Idempotent: revoking an already-revoked or
// unknown session succeeds silently.
func (s *Service) Logout(ctx context.Context, sessionID id.SessionID) error {
	err := s.sessions.Revoke(ctx, sessionID)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return err
	}
	if err == nil {
		s.logAudit(ctx, "logout", "session_id", sessionID.String())
	}
	return nil
}

// LogoutAll revokes every session belonging to the principal and reports
// how many were terminated. Partial failures revoke what they can.
func (s *Service) LogoutAll(ctx context.Context, principalID id.PrincipalID) (int, error) {
	revoked, err := s.sessions.RevokeAllForPrincipal(ctx, principalID)
	if revoked > 0 {
		s.logAudit(ctx, "logout_all",
			"principal_id", principalID.String(),
			"sessions_revoked", revoked,
		)
	}
	return revoked, err
}

// Sessions lists the principal's sessions for device management.
func (s *Service) Sessions(ctx context.Context, principalID id.PrincipalID) ([]*sessionModels.Session, error) {
	return s.sessions.List(ctx, principalID)
}
