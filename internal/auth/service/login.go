package service

import (
	"context"

	"gatehouse/internal/auth/models"
	sessionModels "gatehouse/internal/session/models"
	sessionStore "gatehouse/internal/session/store"
	"gatehouse/internal/token"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

// Login verifies the credential, opens a session and mints the first token
// pair. Unknown usernames and wrong passwords produce the same rejection,
// so the endpoint cannot be used to probe which accounts exist.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResult, error) {
	credential, err := s.credentials.FindByUsername(ctx, req.Username)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.authFailure(ctx, "unknown_username")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credential lookup failed")
	}

	if err := s.passwords.Verify(ctx, req.Password, credential.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.authFailure(ctx, "password_mismatch", "principal_id", credential.PrincipalID.String())
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}

	session, err := s.sessions.Create(ctx, credential.PrincipalID, credential.Scopes, req.UserAgent)
	if err != nil {
		return nil, err
	}

	pair, err := s.mintAndBind(ctx, session)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTokensIssued("login")
	}
	s.logAudit(ctx, "login_succeeded",
		"principal_id", credential.PrincipalID.String(),
		"session_id", session.ID.String(),
	)

	return tokenResult(pair, session), nil
}

// mintAndBind issues the next token pair for a session and advances the
// rotation counter to match, recording the new JTIs in the same atomic
// step. The refresh token always carries the post-advance counter value.
func (s *Service) mintAndBind(ctx context.Context, session *sessionModels.Session) (*token.Pair, error) {
	pair, err := s.tokens.IssuePair(ctx, session.PrincipalID, session.ID, session.Scopes, session.Rotation+1)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.AdvanceRotation(ctx, session.ID, sessionStore.Rotation{
		Expected:        session.Rotation,
		At:              requestcontext.Now(ctx),
		AccessTokenJTI:  pair.AccessTokenJTI,
		RefreshTokenJTI: pair.RefreshTokenJTI,
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

func tokenResult(pair *token.Pair, session *sessionModels.Session) *models.TokenResult {
	return &models.TokenResult{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        pair.AccessExpiresIn,
		RefreshExpiresIn: pair.RefreshExpiresIn,
		SessionID:        session.ID,
	}
}
