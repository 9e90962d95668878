// Package guard is the single entry point in front of business handlers.
// It composes a fixed, closed set of checks: rate limit, token, session,
// credential and quota. Each check runs under a bounded timeout; what
// happens when a check cannot complete is a per-kind policy, not an
// accident of control flow.
package guard

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	authModels "gatehouse/internal/auth/models"
	"gatehouse/internal/platform/metrics"
	rlModels "gatehouse/internal/ratelimit/models"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

const tracerName = "gatehouse/guard"

// Kind enumerates the closed set of check kinds. There is deliberately no
// way to register arbitrary callables.
type Kind string

const (
	KindRateLimit  Kind = "ratelimit"
	KindToken      Kind = "token"
	KindSession    Kind = "session"
	KindCredential Kind = "credential"
	KindQuota      Kind = "quota"
)

// FailMode is the policy when a check errors or times out, as opposed to
// cleanly rejecting.
type FailMode int

const (
	// FailClosed rejects the request when the check cannot complete.
	FailClosed FailMode = iota
	// FailOpen admits the request and logs; used only for rate limiting,
	// where a counter-store outage must not take the service down.
	FailOpen
)

// Target is the per-request state checks read and annotate.
type Target struct {
	ClientIP    string
	Endpoint    string
	BearerToken string

	// Principal is resolved by the token check and consumed by later
	// checks and, ultimately, the business handler.
	Principal *authModels.Principal

	// RateLimit carries the limiter's decision so the transport layer can
	// emit feedback headers even on accepted requests.
	RateLimit *rlModels.Decision
}

// Check is one guard stage. Run returns nil to admit, a domain error to
// reject cleanly, or any other error to signal that the check itself
// failed and the kind's FailMode applies.
type Check interface {
	Kind() Kind
	FailMode() FailMode
	Run(ctx context.Context, target *Target) error
}

// Config bounds every check's execution.
type Config struct {
	// CheckTimeout caps one check's wall time. Counter-store checks do I/O
	// and must never stall a request indefinitely.
	CheckTimeout time.Duration
}

// Guard runs checks in order with short-circuit rejection.
type Guard struct {
	checks  []Check
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

func New(cfg Config, checks []Check, opts ...Option) *Guard {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 250 * time.Millisecond
	}
	g := &Guard{
		checks: checks,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit evaluates every check against the target, stopping at the first
// rejection. The returned error, when non-nil, is always a domain error
// suitable for the transport layer's code mapping.
func (g *Guard) Admit(ctx context.Context, target *Target) error {
	ctx, span := g.tracer.Start(ctx, "guard.admit",
		trace.WithAttributes(attribute.String("endpoint", target.Endpoint)),
	)
	defer span.End()

	for _, check := range g.checks {
		if err := g.run(ctx, check, target); err != nil {
			span.SetAttributes(
				attribute.String("rejected_by", string(check.Kind())),
				attribute.String("code", string(dErrors.CodeOf(err))),
			)
			return err
		}
	}
	return nil
}

// run executes one check under the bounded timeout and applies its fail
// mode. Clean domain rejections always surface; only infrastructure
// failures are subject to fail-open.
func (g *Guard) run(ctx context.Context, check Check, target *Target) error {
	checkCtx, cancel := context.WithTimeout(ctx, g.cfg.CheckTimeout)
	defer cancel()

	started := time.Now()
	err := check.Run(checkCtx, target)
	if g.metrics != nil {
		g.metrics.ObserveGuardCheck(string(check.Kind()), time.Since(started).Seconds())
	}
	if err == nil {
		return nil
	}

	if isRejection(err) {
		return err
	}

	// The check itself failed: timeout or collaborator outage.
	if check.FailMode() == FailOpen {
		if g.metrics != nil {
			g.metrics.IncrementRateLimitFailOpen()
		}
		g.logger.ErrorContext(ctx, "guard check failed, failing open",
			"check", string(check.Kind()),
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return nil
	}

	g.logger.ErrorContext(ctx, "guard check failed, failing closed",
		"check", string(check.Kind()),
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
	if dErrors.HasCode(err, dErrors.CodeTimeout) || checkCtx.Err() != nil {
		return dErrors.New(dErrors.CodeTimeout, "authentication backend timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "request check failed")
}

// isRejection distinguishes a check saying "no" from a check breaking.
func isRejection(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeRateLimitExceeded, dErrors.CodeQuotaExhausted,
		dErrors.CodeAuthRequired, dErrors.CodeUnauthorized,
		dErrors.CodeTokenMalformed, dErrors.CodeSignatureInvalid,
		dErrors.CodeTokenExpired, dErrors.CodeTokenRevoked,
		dErrors.CodeSessionRevoked, dErrors.CodeReuseDetected,
		dErrors.CodeWeakSecret, dErrors.CodeForbidden:
		return true
	default:
		return false
	}
}
