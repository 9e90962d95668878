// Package ratelimit evaluates sliding-window limits across request scopes,
// with a token-bucket burst guard behind them. Limits are immutable after
// construction; tests inject arbitrary policies through Config.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"gatehouse/internal/platform/metrics"
	"gatehouse/internal/ratelimit/models"
	"gatehouse/internal/ratelimit/store/burst"
	"gatehouse/internal/ratelimit/store/window"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

// ScopePolicy controls how per-scope verdicts combine.
type ScopePolicy string

const (
	// PolicyAll rejects when any evaluated scope is over its limit. This is
	// the default: the safer reading when scopes disagree.
	PolicyAll ScopePolicy = "all"
	// PolicyAny admits as long as at least one evaluated scope still has
	// headroom, rejecting only when every scope is exhausted.
	PolicyAny ScopePolicy = "any"
)

// Rule is one scope's sliding-window budget.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) enabled() bool { return r.Limit > 0 && r.Window > 0 }

// Config is the limiter's complete policy.
type Config struct {
	Policy ScopePolicy

	Global       Rule
	PerIP        Rule
	PerPrincipal Rule
	// PerEndpoint applies per endpoint class, keyed by the route pattern.
	PerEndpoint map[string]Rule

	// Burst guards the most specific identifier on the request (principal
	// when authenticated, client IP otherwise).
	BurstCapacity int
	BurstRefill   float64
}

// Request carries the identifiers a rate-limit evaluation may scope on.
// Empty fields skip their scope.
type Request struct {
	ClientIP  string
	Principal string
	Endpoint  string
}

// Service evaluates the configured scopes in fixed order: global, IP,
// principal, endpoint, then the burst bucket.
type Service struct {
	windows window.Store
	buckets burst.Store
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(windows window.Store, buckets burst.Store, cfg Config, opts ...Option) *Service {
	if cfg.Policy == "" {
		cfg.Policy = PolicyAll
	}
	s := &Service{
		windows: windows,
		buckets: buckets,
		cfg:     cfg,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check evaluates every applicable scope. The returned decision always
// carries the binding (most restrictive) scope's metadata so callers can
// emit limit headers on accepted responses too. When the decision is a
// rejection, err carries CodeRateLimitExceeded and the binding result holds the
// retry-after duration.
func (s *Service) Check(ctx context.Context, req Request) (*models.Decision, error) {
	now := requestcontext.Now(ctx)
	decision := &models.Decision{Allowed: true}

	anyAllowed := false
	for _, probe := range s.probes(req) {
		result, err := s.evaluate(ctx, probe, now)
		if err != nil {
			return nil, err
		}
		decision.Results = append(decision.Results, result)
		if result.MoreRestrictiveThan(decision.Binding) {
			decision.Binding = result
		}
		if result.Allowed {
			anyAllowed = true
		} else if s.cfg.Policy == PolicyAll {
			decision.Allowed = false
			s.reject(ctx, result)
			return decision, dErrors.New(dErrors.CodeRateLimitExceeded, "rate limit exceeded for scope "+string(result.Scope))
		}
	}

	if s.cfg.Policy == PolicyAny && len(decision.Results) > 0 && !anyAllowed {
		decision.Allowed = false
		s.reject(ctx, decision.Binding)
		return decision, dErrors.New(dErrors.CodeRateLimitExceeded, "rate limit exceeded for scope "+string(decision.Binding.Scope))
	}

	if allowed, err := s.takeBurstToken(ctx, req, now); err != nil {
		return nil, err
	} else if !allowed {
		decision.Allowed = false
		burstResult := &models.Result{
			Scope:      models.ScopeIP,
			Identifier: burstIdentifier(req),
			Allowed:    false,
			RetryAfter: s.burstRetryAfter(),
			ResetAt:    now.Add(s.burstRetryAfter()),
		}
		decision.Binding = burstResult
		decision.Results = append(decision.Results, burstResult)
		s.reject(ctx, burstResult)
		return decision, dErrors.New(dErrors.CodeRateLimitExceeded, "burst limit exceeded")
	}

	return decision, nil
}

// CheckPrincipal evaluates only the principal-keyed scopes: the
// per-principal sliding window and the principal burst bucket. The request
// path learns the principal from token verification, after the anonymous
// scopes have already run, so this is a second evaluation stage rather
// than a re-run of Check.
func (s *Service) CheckPrincipal(ctx context.Context, principal string) (*models.Decision, error) {
	now := requestcontext.Now(ctx)
	decision := &models.Decision{Allowed: true}
	if principal == "" {
		return decision, nil
	}

	if s.cfg.PerPrincipal.enabled() {
		result, err := s.evaluate(ctx, probe{models.ScopePrincipal, principal, s.cfg.PerPrincipal}, now)
		if err != nil {
			return nil, err
		}
		decision.Results = append(decision.Results, result)
		decision.Binding = result
		if !result.Allowed {
			decision.Allowed = false
			s.reject(ctx, result)
			return decision, dErrors.New(dErrors.CodeRateLimitExceeded, "rate limit exceeded for scope "+string(models.ScopePrincipal))
		}
	}

	if allowed, err := s.takeBurstToken(ctx, Request{Principal: principal}, now); err != nil {
		return nil, err
	} else if !allowed {
		burstResult := &models.Result{
			Scope:      models.ScopePrincipal,
			Identifier: principal,
			Allowed:    false,
			RetryAfter: s.burstRetryAfter(),
			ResetAt:    now.Add(s.burstRetryAfter()),
		}
		decision.Allowed = false
		decision.Binding = burstResult
		decision.Results = append(decision.Results, burstResult)
		s.reject(ctx, burstResult)
		return decision, dErrors.New(dErrors.CodeRateLimitExceeded, "burst limit exceeded")
	}

	return decision, nil
}

type probe struct {
	scope      models.Scope
	identifier string
	rule       Rule
}

func (s *Service) probes(req Request) []probe {
	probes := make([]probe, 0, 4)
	if s.cfg.Global.enabled() {
		probes = append(probes, probe{models.ScopeGlobal, "all", s.cfg.Global})
	}
	if s.cfg.PerIP.enabled() && req.ClientIP != "" {
		probes = append(probes, probe{models.ScopeIP, req.ClientIP, s.cfg.PerIP})
	}
	if s.cfg.PerPrincipal.enabled() && req.Principal != "" {
		probes = append(probes, probe{models.ScopePrincipal, req.Principal, s.cfg.PerPrincipal})
	}
	if req.Endpoint != "" {
		if rule, ok := s.cfg.PerEndpoint[req.Endpoint]; ok && rule.enabled() {
			probes = append(probes, probe{models.ScopeEndpoint, req.Endpoint, rule})
		}
	}
	return probes
}

func (s *Service) evaluate(ctx context.Context, p probe, now time.Time) (*models.Result, error) {
	slot, err := s.windows.Allow(ctx, models.Key(p.scope, p.identifier), p.rule.Limit, p.rule.Window, now)
	if err != nil {
		return nil, err
	}

	result := &models.Result{
		Scope:      p.scope,
		Identifier: p.identifier,
		Allowed:    slot.Allowed,
		Limit:      p.rule.Limit,
		Remaining:  max(0, p.rule.Limit-slot.Count),
		ResetAt:    now.Add(p.rule.Window),
	}
	if !slot.OldestAt.IsZero() {
		result.ResetAt = slot.OldestAt.Add(p.rule.Window)
	}
	if !slot.Allowed {
		result.RetryAfter = max(0, result.ResetAt.Sub(now))
	}
	return result, nil
}

func (s *Service) takeBurstToken(ctx context.Context, req Request, now time.Time) (bool, error) {
	if s.cfg.BurstCapacity <= 0 || s.cfg.BurstRefill <= 0 {
		return true, nil
	}
	identifier := burstIdentifier(req)
	if identifier == "" {
		return true, nil
	}
	return s.buckets.Take(ctx, models.BurstKey(identifier), s.cfg.BurstCapacity, s.cfg.BurstRefill, now)
}

func (s *Service) burstRetryAfter() time.Duration {
	return time.Duration(float64(time.Second) / s.cfg.BurstRefill)
}

func (s *Service) reject(ctx context.Context, result *models.Result) {
	if s.metrics != nil {
		s.metrics.IncrementRateLimitRejections(string(result.Scope))
	}
	s.logger.WarnContext(ctx, "rate limit exceeded",
		"event", "rate_limit_exceeded",
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"scope", string(result.Scope),
		"identifier", result.Identifier,
		"limit", result.Limit,
		"retry_after_seconds", result.RetryAfter.Seconds(),
	)
}

func burstIdentifier(req Request) string {
	if req.Principal != "" {
		return req.Principal
	}
	return req.ClientIP
}
