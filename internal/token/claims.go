package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Token use markers embedded in claims so an access token can never be
// replayed against the refresh endpoint or vice versa.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Claims represents the JWT claims for gatehouse tokens. Access and refresh
// tokens share the shape; Rotation is only meaningful on refresh tokens.
type Claims struct {
	PrincipalID string   `json:"principal_id"`
	SessionID   string   `json:"session_id"`
	Scope       []string `json:"scope,omitempty"`
	TokenUse    string   `json:"token_use"`
	Rotation    int      `json:"rotation,omitempty"`
	jwt.RegisteredClaims
}

// JTI returns the unique token identifier used for revocation tracking.
func (c *Claims) JTI() string {
	return c.ID
}
