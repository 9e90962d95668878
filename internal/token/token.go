// Package token mints and verifies signed, time-bounded access and refresh
// tokens. Signing uses HMAC with a rotatable key ring: every signed token
// carries a key version header so multiple keys stay valid during rotation.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

const issuer = "gatehouse"

// Config holds the immutable token policy.
type Config struct {
	// Keys maps key version -> HMAC secret. CurrentKeyID selects the minting
	// key; all listed keys are accepted during verification.
	Keys         map[string]string
	CurrentKeyID string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// ClockSkew is the leeway applied to expiry checks. Tokens outside the
	// leeway are rejected, never repaired.
	ClockSkew time.Duration
}

// Service handles token creation and validation.
type Service struct {
	keys       map[string][]byte
	currentKID string
	accessTTL  time.Duration
	refreshTTL time.Duration
	skew       time.Duration
}

// Pair bundles the access/refresh tokens minted together on login or refresh.
type Pair struct {
	AccessToken      string
	AccessTokenJTI   string
	RefreshToken     string
	RefreshTokenJTI  string
	AccessExpiresIn  time.Duration
	RefreshExpiresIn time.Duration
}

func New(cfg Config) (*Service, error) {
	if len(cfg.Keys) == 0 {
		return nil, errors.New("at least one signing key is required")
	}
	if _, ok := cfg.Keys[cfg.CurrentKeyID]; !ok {
		return nil, errors.New("current key ID is not in the key ring")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}

	keys := make(map[string][]byte, len(cfg.Keys))
	for version, secret := range cfg.Keys {
		keys[version] = []byte(secret)
	}
	return &Service{
		keys:       keys,
		currentKID: cfg.CurrentKeyID,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		skew:       cfg.ClockSkew,
	}, nil
}

// IssueAccessToken mints a signed access token bound to a principal and
// session. Returns the compact token and its jti.
func (s *Service) IssueAccessToken(ctx context.Context, principalID id.PrincipalID, sessionID id.SessionID, scopes []string) (string, string, error) {
	return s.issue(ctx, Claims{
		PrincipalID: principalID.String(),
		SessionID:   sessionID.String(),
		Scope:       scopes,
		TokenUse:    UseAccess,
	}, s.accessTTL)
}

// IssueRefreshToken mints a signed refresh token carrying the session's
// rotation counter. The counter is what lets the refresh flow detect replay
// of a superseded token.
func (s *Service) IssueRefreshToken(ctx context.Context, principalID id.PrincipalID, sessionID id.SessionID, rotation int) (string, string, error) {
	return s.issue(ctx, Claims{
		PrincipalID: principalID.String(),
		SessionID:   sessionID.String(),
		TokenUse:    UseRefresh,
		Rotation:    rotation,
	}, s.refreshTTL)
}

// IssuePair mints a matched access/refresh token pair for a session.
func (s *Service) IssuePair(ctx context.Context, principalID id.PrincipalID, sessionID id.SessionID, scopes []string, rotation int) (*Pair, error) {
	access, accessJTI, err := s.IssueAccessToken(ctx, principalID, sessionID, scopes)
	if err != nil {
		return nil, err
	}
	refresh, refreshJTI, err := s.IssueRefreshToken(ctx, principalID, sessionID, rotation)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:      access,
		AccessTokenJTI:   accessJTI,
		RefreshToken:     refresh,
		RefreshTokenJTI:  refreshJTI,
		AccessExpiresIn:  s.accessTTL,
		RefreshExpiresIn: s.refreshTTL,
	}, nil
}

func (s *Service) issue(ctx context.Context, claims Claims, ttl time.Duration) (string, string, error) {
	jti, err := newJTI()
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate token ID")
	}
	now := requestcontext.Now(ctx)

	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    issuer,
		ID:        jti,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = s.currentKID

	signed, err := tok.SignedString(s.keys[s.currentKID])
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return signed, jti, nil
}

// Verify parses and validates a compact token for the expected use. Signature
// is checked against every key in the ring (keyed by the token's kid header
// when present); expiry is checked with the configured clock skew leeway.
//
// Failure modes map to stable codes: token_malformed, signature_invalid,
// token_expired.
func (s *Service) Verify(ctx context.Context, tokenString, expectedUse string) (*Claims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeTokenMalformed, "empty token")
	}

	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.skew),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, dErrors.New(dErrors.CodeTokenExpired, "token expired")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, dErrors.New(dErrors.CodeSignatureInvalid, "invalid token signature")
		default:
			return nil, dErrors.New(dErrors.CodeTokenMalformed, "malformed token")
		}
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeSignatureInvalid, "invalid token")
	}

	if claims.TokenUse != expectedUse {
		return nil, dErrors.New(dErrors.CodeTokenMalformed, "unexpected token use")
	}
	if claims.ID == "" {
		return nil, dErrors.New(dErrors.CodeTokenMalformed, "token missing jti")
	}
	return claims, nil
}

// keyFunc selects the verification key from the ring. Tokens carrying an
// unknown or missing kid fail signature verification rather than falling
// back to a default key.
func (s *Service) keyFunc(t *jwt.Token) (any, error) {
	kid, ok := t.Header["kid"].(string)
	if !ok {
		return nil, jwt.ErrTokenUnverifiable
	}
	key, ok := s.keys[kid]
	if !ok {
		return nil, jwt.ErrTokenUnverifiable
	}
	return key, nil
}

// AccessTTL exposes the configured access-token lifetime for revocation TTLs.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL exposes the configured refresh-token lifetime.
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func newJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
