// Package quota tracks a hard external-API budget per upstream account.
// The ceiling is set by the upstream provider, not by this service, and
// breaching it risks account suspension rather than mere throttling. The
// tracker therefore fails closed: when the counter store is unreachable,
// no reservation is granted.
package quota

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gatehouse/internal/platform/metrics"
	"gatehouse/internal/quota/store"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

// Config sets the shared budget applied to every upstream account.
type Config struct {
	// PerWindow is the hard ceiling of upstream calls per account per window.
	PerWindow int
	// Window is the fixed accounting period. Counts never carry over
	// between windows.
	Window time.Duration
}

// Window describes one fixed accounting period for an account.
type Window struct {
	AccountID id.AccountID
	Start     time.Time
	End       time.Time
	Used      int
	Limit     int
}

// Reservation is one admitted slot in a quota window. Callers that decide
// not to make the upstream call must Release it; an abandoned reservation
// stays counted.
type Reservation struct {
	AccountID     id.AccountID
	EndpointClass string
	WindowStart   time.Time
	Count         int

	key      string
	classKey string
	released atomic.Bool
}

// Tracker is the quota service.
type Tracker struct {
	store   store.Store
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func New(st store.Store, cfg Config, opts ...Option) *Tracker {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	t := &Tracker{
		store:  st,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reserve claims one upstream call slot for the account's current window.
// At the ceiling it fails with CodeQuotaExhausted without counting. Store
// failures also reject: an outage must never risk breaching the ceiling.
func (t *Tracker) Reserve(ctx context.Context, accountID id.AccountID, endpointClass string) (*Reservation, error) {
	now := requestcontext.Now(ctx)
	start := t.windowStart(now)
	key := windowKey(accountID, start)

	// The key lives two windows so a release after rollover still finds it.
	count, admitted, err := t.store.Reserve(ctx, key, t.cfg.PerWindow, 2*t.cfg.Window)
	if err != nil {
		t.observe("error")
		t.logger.ErrorContext(ctx, "quota reservation failed, failing closed",
			"request_id", requestcontext.RequestID(ctx),
			"account_id", accountID.String(),
			"error", err.Error(),
		)
		return nil, dErrors.New(dErrors.CodeQuotaExhausted, "quota store unavailable")
	}
	if !admitted {
		t.observe("exhausted")
		t.logger.WarnContext(ctx, "external quota exhausted",
			"event", "quota_exhausted",
			"log_type", "audit",
			"request_id", requestcontext.RequestID(ctx),
			"account_id", accountID.String(),
			"endpoint_class", endpointClass,
			"limit", t.cfg.PerWindow,
		)
		return nil, dErrors.New(dErrors.CodeQuotaExhausted, "external quota exhausted for account")
	}

	reservation := &Reservation{
		AccountID:     accountID,
		EndpointClass: endpointClass,
		WindowStart:   start,
		Count:         count,
		key:           key,
	}
	if endpointClass != "" {
		reservation.classKey = classKey(accountID, start, endpointClass)
		if err := t.store.Add(ctx, reservation.classKey, 1, 2*t.cfg.Window); err != nil {
			t.logger.WarnContext(ctx, "failed to record endpoint breakdown",
				"account_id", accountID.String(),
				"error", err.Error(),
			)
		}
	}
	t.observe("admitted")
	return reservation, nil
}

// Release returns an unused reservation to the window. Safe to call more
// than once; only the first call decrements.
func (t *Tracker) Release(ctx context.Context, reservation *Reservation) error {
	if reservation == nil || !reservation.released.CompareAndSwap(false, true) {
		return nil
	}
	if err := t.store.Release(ctx, reservation.key); err != nil {
		return err
	}
	if reservation.classKey != "" {
		if err := t.store.Add(ctx, reservation.classKey, -1, 2*t.cfg.Window); err != nil {
			t.logger.WarnContext(ctx, "failed to release endpoint breakdown",
				"account_id", reservation.AccountID.String(),
				"error", err.Error(),
			)
		}
	}
	t.observe("released")
	return nil
}

// WindowFor reports the account's current window and usage.
func (t *Tracker) WindowFor(ctx context.Context, accountID id.AccountID) (Window, error) {
	now := requestcontext.Now(ctx)
	start := t.windowStart(now)

	used, err := t.store.Count(ctx, windowKey(accountID, start))
	if err != nil {
		return Window{}, err
	}
	return Window{
		AccountID: accountID,
		Start:     start,
		End:       start.Add(t.cfg.Window),
		Used:      used,
		Limit:     t.cfg.PerWindow,
	}, nil
}

// windowStart truncates to a fixed boundary aligned to the epoch, so every
// instance computes identical windows without coordination.
func (t *Tracker) windowStart(now time.Time) time.Time {
	return now.UTC().Truncate(t.cfg.Window)
}

func (t *Tracker) observe(outcome string) {
	if t.metrics != nil {
		t.metrics.IncrementQuotaReservations(outcome)
	}
}

func windowKey(accountID id.AccountID, start time.Time) string {
	return "quota:" + sanitizeAccount(accountID) + ":" + strconv.FormatInt(start.Unix(), 10)
}

func classKey(accountID id.AccountID, start time.Time, endpointClass string) string {
	return windowKey(accountID, start) + ":" + strings.ReplaceAll(endpointClass, ":", "_c")
}

func sanitizeAccount(accountID id.AccountID) string {
	s := strings.ReplaceAll(accountID.String(), "_", "__")
	return strings.ReplaceAll(s, ":", "_c")
}
