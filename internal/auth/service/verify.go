package service

import (
	"context"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/token"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

// VerifyAccess validates an access token end to end: signature and expiry,
// JTI blacklist, then session liveness. On success the resolved principal
// is returned and session activity is recorded best-effort.
func (s *Service) VerifyAccess(ctx context.Context, accessToken string) (*models.Principal, error) {
	claims, err := s.tokens.Verify(ctx, accessToken, token.UseAccess)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.JTI())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "revocation check failed")
	}
	if revoked {
		return nil, dErrors.New(dErrors.CodeTokenRevoked, "token has been revoked")
	}

	principalID, err := id.ParsePrincipalID(claims.PrincipalID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeTokenMalformed, "token carries an invalid principal ID")
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeTokenMalformed, "token carries an invalid session ID")
	}

	active, err := s.sessions.IsActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, dErrors.New(dErrors.CodeSessionRevoked, "session is no longer valid")
	}

	s.sessions.Touch(ctx, sessionID)

	return &models.Principal{
		ID:        principalID,
		SessionID: sessionID,
		Scopes:    claims.Scope,
	}, nil
}
