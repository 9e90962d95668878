// Package models defines the auth flows' request and result shapes, plus
// the resolved principal attached to authenticated requests.
package models

import (
	"time"

	id "gatehouse/pkg/domain"
)

// Credential is one principal's stored secret, supplied by the credential
// source collaborator. The core never sees the storage schema behind it.
type Credential struct {
	PrincipalID  id.PrincipalID
	Username     string
	PasswordHash string
	Scopes       []string
}

// Principal is the resolved identity attached to a request after the guard
// admits it. Business handlers receive this, never raw tokens.
type Principal struct {
	ID        id.PrincipalID
	SessionID id.SessionID
	Scopes    []string
}

// HasScope reports whether the principal was granted a scope.
func (p *Principal) HasScope(scope string) bool {
	for _, granted := range p.Scopes {
		if granted == scope {
			return true
		}
	}
	return false
}

// LoginRequest carries everything a login attempt needs.
type LoginRequest struct {
	Username  string
	Password  string
	UserAgent string
}

// TokenResult is the minted pair handed back on login and refresh.
type TokenResult struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        time.Duration
	RefreshExpiresIn time.Duration
	SessionID        id.SessionID
}
