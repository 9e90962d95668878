package guard

import (
	"context"

	authModels "gatehouse/internal/auth/models"
	"gatehouse/internal/quota"
	"gatehouse/internal/ratelimit"
	rlModels "gatehouse/internal/ratelimit/models"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

// RateLimiter is the limiter surface the guard needs.
type RateLimiter interface {
	Check(ctx context.Context, req ratelimit.Request) (*rlModels.Decision, error)
}

// TokenVerifier resolves an access token to a principal.
type TokenVerifier interface {
	VerifyAccess(ctx context.Context, accessToken string) (*authModels.Principal, error)
}

// SessionChecker reports whether a session is still live.
type SessionChecker interface {
	IsActive(ctx context.Context, sessionID id.SessionID) (bool, error)
}

// PasswordVerifier checks a plaintext secret against a stored hash.
type PasswordVerifier interface {
	Verify(ctx context.Context, password, hash string) error
}

// QuotaReserver claims upstream call slots.
type QuotaReserver interface {
	Reserve(ctx context.Context, accountID id.AccountID, endpointClass string) (*quota.Reservation, error)
}

// RateLimitCheck evaluates every configured scope. Fails open: this is the
// only check whose backend outage must not reject traffic.
type RateLimitCheck struct {
	limiter RateLimiter
}

func NewRateLimitCheck(limiter RateLimiter) *RateLimitCheck {
	return &RateLimitCheck{limiter: limiter}
}

func (c *RateLimitCheck) Kind() Kind         { return KindRateLimit }
func (c *RateLimitCheck) FailMode() FailMode { return FailOpen }

func (c *RateLimitCheck) Run(ctx context.Context, target *Target) error {
	req := ratelimit.Request{
		ClientIP: target.ClientIP,
		Endpoint: target.Endpoint,
	}
	if target.Principal != nil {
		req.Principal = target.Principal.ID.String()
	}
	decision, err := c.limiter.Check(ctx, req)
	target.RateLimit = decision
	return err
}

// PrincipalRateLimiter evaluates the principal-keyed scopes once the
// principal is known.
type PrincipalRateLimiter interface {
	CheckPrincipal(ctx context.Context, principal string) (*rlModels.Decision, error)
}

// PrincipalRateLimitCheck is the second limiter stage. It runs after token
// verification, when the principal the anonymous stage could not see has
// been resolved, and enforces the per-principal window and the
// principal-keyed burst bucket. Same kind and fail mode as the anonymous
// stage.
type PrincipalRateLimitCheck struct {
	limiter PrincipalRateLimiter
}

func NewPrincipalRateLimitCheck(limiter PrincipalRateLimiter) *PrincipalRateLimitCheck {
	return &PrincipalRateLimitCheck{limiter: limiter}
}

func (c *PrincipalRateLimitCheck) Kind() Kind         { return KindRateLimit }
func (c *PrincipalRateLimitCheck) FailMode() FailMode { return FailOpen }

func (c *PrincipalRateLimitCheck) Run(ctx context.Context, target *Target) error {
	if target.Principal == nil {
		return nil
	}
	decision, err := c.limiter.CheckPrincipal(ctx, target.Principal.ID.String())
	target.RateLimit = mergeDecisions(target.RateLimit, decision)
	return err
}

// mergeDecisions folds the principal-stage decision into the anonymous
// stage's so feedback headers reflect the most restrictive scope overall.
func mergeDecisions(base, extra *rlModels.Decision) *rlModels.Decision {
	if extra == nil {
		return base
	}
	if base == nil {
		return extra
	}
	base.Allowed = base.Allowed && extra.Allowed
	base.Results = append(base.Results, extra.Results...)
	if extra.Binding != nil && extra.Binding.MoreRestrictiveThan(base.Binding) {
		base.Binding = extra.Binding
	}
	return base
}

// TokenCheck verifies the bearer token and resolves the principal. A
// missing token on a guarded route is auth_required; an expired one is
// surfaced as-is, never silently refreshed.
type TokenCheck struct {
	verifier TokenVerifier
}

func NewTokenCheck(verifier TokenVerifier) *TokenCheck {
	return &TokenCheck{verifier: verifier}
}

func (c *TokenCheck) Kind() Kind         { return KindToken }
func (c *TokenCheck) FailMode() FailMode { return FailClosed }

func (c *TokenCheck) Run(ctx context.Context, target *Target) error {
	if target.BearerToken == "" {
		return dErrors.New(dErrors.CodeAuthRequired, "authentication required")
	}
	principal, err := c.verifier.VerifyAccess(ctx, target.BearerToken)
	if err != nil {
		return err
	}
	target.Principal = principal
	return nil
}

// SessionCheck re-validates session liveness on the resolved principal.
type SessionCheck struct {
	sessions SessionChecker
}

func NewSessionCheck(sessions SessionChecker) *SessionCheck {
	return &SessionCheck{sessions: sessions}
}

func (c *SessionCheck) Kind() Kind         { return KindSession }
func (c *SessionCheck) FailMode() FailMode { return FailClosed }

func (c *SessionCheck) Run(ctx context.Context, target *Target) error {
	if target.Principal == nil {
		return dErrors.New(dErrors.CodeAuthRequired, "no resolved principal")
	}
	active, err := c.sessions.IsActive(ctx, target.Principal.SessionID)
	if err != nil {
		return err
	}
	if !active {
		return dErrors.New(dErrors.CodeSessionRevoked, "session is no longer valid")
	}
	return nil
}

// CredentialCheck verifies a supplied secret. It is not part of the
// request path; login-style handlers compose it so credential
// verification runs under the same bounded-timeout discipline as every
// other check.
type CredentialCheck struct {
	passwords PasswordVerifier
	password  string
	hash      string
}

func NewCredentialCheck(passwords PasswordVerifier, password, hash string) *CredentialCheck {
	return &CredentialCheck{passwords: passwords, password: password, hash: hash}
}

func (c *CredentialCheck) Kind() Kind         { return KindCredential }
func (c *CredentialCheck) FailMode() FailMode { return FailClosed }

func (c *CredentialCheck) Run(ctx context.Context, _ *Target) error {
	return c.passwords.Verify(ctx, c.password, c.hash)
}

// QuotaCheck reserves one upstream call slot. Composed by handlers that
// declare an outbound upstream call, per the collaborator contract; it is
// never run implicitly. Fails closed: an outage must not risk breaching
// the upstream ceiling.
type QuotaCheck struct {
	quotas    QuotaReserver
	accountID id.AccountID
	class     string

	// Reservation is populated on success so the caller can Release it if
	// the upstream call is ultimately not made.
	Reservation *quota.Reservation
}

func NewQuotaCheck(quotas QuotaReserver, accountID id.AccountID, endpointClass string) *QuotaCheck {
	return &QuotaCheck{quotas: quotas, accountID: accountID, class: endpointClass}
}

func (c *QuotaCheck) Kind() Kind         { return KindQuota }
func (c *QuotaCheck) FailMode() FailMode { return FailClosed }

func (c *QuotaCheck) Run(ctx context.Context, _ *Target) error {
	reservation, err := c.quotas.Reserve(ctx, c.accountID, c.class)
	if err != nil {
		return err
	}
	c.Reservation = reservation
	return nil
}
