package service

import (
	"time"

	"gatehouse/internal/auth/models"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

func (s *ServiceSuite) TestLoginIssuesPairBoundToOneSession() {
	result := s.login()

	s.NotEmpty(result.AccessToken)
	s.NotEmpty(result.RefreshToken)
	s.Equal("Bearer", result.TokenType)
	s.False(result.SessionID.IsNil())

	principal, err := s.service.VerifyAccess(s.ctx(), result.AccessToken)
	s.Require().NoError(err)
	s.Equal(result.SessionID, principal.SessionID)
	s.Equal([]string{"read", "write"}, principal.Scopes)
}

func (s *ServiceSuite) TestLoginUnknownUsername() {
	_, err := s.service.Login(s.ctx(), models.LoginRequest{
		Username: "nobody",
		Password: testPassword,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.EqualError(err, "invalid credentials",
		"unknown usernames and bad passwords must be indistinguishable")
}

func (s *ServiceSuite) TestLoginWrongPassword() {
	_, err := s.service.Login(s.ctx(), models.LoginRequest{
		Username: testUsername,
		Password: "Wr0ng-Passw0rd!",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.EqualError(err, "invalid credentials")
}

func (s *ServiceSuite) TestVerifyAccessRejectsExpiredToken() {
	result := s.login()

	_, err := s.service.VerifyAccess(s.ctxAt(2*time.Hour), result.AccessToken)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenExpired))
}

func (s *ServiceSuite) TestVerifyAccessRejectsRefreshToken() {
	result := s.login()

	_, err := s.service.VerifyAccess(s.ctx(), result.RefreshToken)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenMalformed))
}

func (s *ServiceSuite) TestRefreshRotatesPair() {
	first := s.login()

	second, err := s.service.Refresh(s.ctx(), first.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(first.AccessToken, second.AccessToken)
	s.NotEqual(first.RefreshToken, second.RefreshToken)
	s.Equal(first.SessionID, second.SessionID, "refresh stays within the same session")

	// The new pair is immediately usable.
	_, err = s.service.VerifyAccess(s.ctx(), second.AccessToken)
	s.NoError(err)

	third, err := s.service.Refresh(s.ctx(), second.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(second.RefreshToken, third.RefreshToken)
}

func (s *ServiceSuite) TestRefreshReuseRevokesWholeSession() {
	first := s.login()

	second, err := s.service.Refresh(s.ctx(), first.RefreshToken)
	s.Require().NoError(err)

	// Replaying the spent token is theft.
	_, err = s.service.Refresh(s.ctx(), first.RefreshToken)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeReuseDetected))

	// The session died with it: the newest refresh token is dead too.
	_, err = s.service.Refresh(s.ctx(), second.RefreshToken)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeSessionRevoked))

	// And so is the newest access token.
	_, err = s.service.VerifyAccess(s.ctx(), second.AccessToken)
	s.Require().Error(err)
}

func (s *ServiceSuite) TestRefreshRejectsAccessToken() {
	result := s.login()

	_, err := s.service.Refresh(s.ctx(), result.AccessToken)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenMalformed))
}

func (s *ServiceSuite) TestLogoutInvalidatesUnexpiredAccessToken() {
	result := s.login()

	s.Require().NoError(s.service.Logout(s.ctx(), result.SessionID))

	_, err := s.service.VerifyAccess(s.ctx(), result.AccessToken)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenRevoked) ||
		dErrors.HasCode(err, dErrors.CodeSessionRevoked))
}

func (s *ServiceSuite) TestLogoutIsIdempotent() {
	result := s.login()

	s.Require().NoError(s.service.Logout(s.ctx(), result.SessionID))
	s.Require().NoError(s.service.Logout(s.ctx(), result.SessionID))
	s.Require().NoError(s.service.Logout(s.ctx(), id.NewSessionID()),
		"logging out an unknown session succeeds silently")
}

func (s *ServiceSuite) TestLogoutAll() {
	first := s.login()
	second := s.login()
	s.NotEqual(first.SessionID, second.SessionID)

	credential, err := s.source.FindByUsername(s.ctx(), testUsername)
	s.Require().NoError(err)

	revoked, err := s.service.LogoutAll(s.ctx(), credential.PrincipalID)
	s.Require().NoError(err)
	s.Equal(2, revoked)

	_, err = s.service.VerifyAccess(s.ctx(), first.AccessToken)
	s.Error(err)
	_, err = s.service.VerifyAccess(s.ctx(), second.AccessToken)
	s.Error(err)
}

func (s *ServiceSuite) TestSessionsListing() {
	s.login()
	s.login()

	credential, err := s.source.FindByUsername(s.ctx(), testUsername)
	s.Require().NoError(err)

	sessions, err := s.service.Sessions(s.ctx(), credential.PrincipalID)
	s.Require().NoError(err)
	s.Len(sessions, 2)
}
