package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the guard-path Prometheus collectors. A single instance
// is created in main and shared across services via options.
type Metrics struct {
	AuthFailuresTotal        prometheus.Counter
	TokensIssuedTotal        *prometheus.CounterVec
	TokenRevocationsTotal    prometheus.Counter
	SessionsRevokedTotal     prometheus.Counter
	ActiveSessions           prometheus.Gauge
	ReuseDetectedTotal       prometheus.Counter
	RateLimitRejectionsTotal *prometheus.CounterVec
	RateLimitFailOpenTotal   prometheus.Counter
	QuotaReservationsTotal   *prometheus.CounterVec
	GuardCheckDuration       *prometheus.HistogramVec
	CleanupRunsTotal         *prometheus.CounterVec
	HashQueueDepth           prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		AuthFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_auth_failures_total",
			Help: "Total number of failed authentication attempts",
		}),
		TokensIssuedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_tokens_issued_total",
			Help: "Total number of tokens minted, by token type",
		}, []string{"type"}),
		TokenRevocationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_token_revocations_total",
			Help: "Total number of token JTIs added to the revocation set",
		}),
		SessionsRevokedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_sessions_revoked_total",
			Help: "Total number of sessions revoked",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gatehouse_active_sessions",
			Help: "Current number of unrevoked sessions",
		}),
		ReuseDetectedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_refresh_reuse_detected_total",
			Help: "Total number of refresh token replays detected",
		}),
		RateLimitRejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_rejections_total",
			Help: "Total number of rate limited requests, by scope",
		}, []string{"scope"}),
		RateLimitFailOpenTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_fail_open_total",
			Help: "Total number of requests admitted because the counter store was unavailable",
		}),
		QuotaReservationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_quota_reservations_total",
			Help: "Total number of upstream quota reservations, by outcome",
		}, []string{"outcome"}),
		GuardCheckDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatehouse_guard_check_duration_seconds",
			Help:    "Duration of individual guard checks",
			Buckets: prometheus.DefBuckets,
		}, []string{"check"}),
		CleanupRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_cleanup_runs_total",
			Help: "Total number of background cleanup runs, by status",
		}, []string{"status"}),
		HashQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gatehouse_hash_queue_depth",
			Help: "Current number of hashing operations waiting for a worker slot",
		}),
	}
}

func (m *Metrics) IncrementAuthFailures() {
	m.AuthFailuresTotal.Inc()
}

func (m *Metrics) IncrementTokensIssued(tokenType string) {
	m.TokensIssuedTotal.WithLabelValues(tokenType).Inc()
}

func (m *Metrics) IncrementTokenRevocations() {
	m.TokenRevocationsTotal.Inc()
}

func (m *Metrics) IncrementSessionsRevoked(count int) {
	m.SessionsRevokedTotal.Add(float64(count))
	m.ActiveSessions.Sub(float64(count))
}

func (m *Metrics) IncrementActiveSessions(delta int) {
	m.ActiveSessions.Add(float64(delta))
}

func (m *Metrics) IncrementReuseDetected() {
	m.ReuseDetectedTotal.Inc()
}

func (m *Metrics) IncrementRateLimitRejections(scope string) {
	m.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) IncrementRateLimitFailOpen() {
	m.RateLimitFailOpenTotal.Inc()
}

func (m *Metrics) IncrementQuotaReservations(outcome string) {
	m.QuotaReservationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveGuardCheck(check string, seconds float64) {
	m.GuardCheckDuration.WithLabelValues(check).Observe(seconds)
}

func (m *Metrics) IncrementCleanupRuns(status string) {
	m.CleanupRunsTotal.WithLabelValues(status).Inc()
}
