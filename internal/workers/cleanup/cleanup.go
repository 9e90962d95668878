// Package cleanup removes expired authentication artifacts in the background.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gatehouse/internal/platform/metrics"
)

// SessionPruner deletes sessions whose hard expiry has passed.
type SessionPruner interface {
	PruneExpired(ctx context.Context) (int, error)
}

// Result summarizes one cleanup run.
type Result struct {
	DeletedSessions int
}

// Service periodically prunes expired sessions. Revoked-token blacklist
// entries expire on their own TTLs and need no sweeping here.
type Service struct {
	sessions SessionPruner
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures Service.
type Option func(*Service)

// WithInterval overrides the run interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithLogger overrides the logger used for cleanup errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables run counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a cleanup Service with options applied.
func New(sessions SessionPruner, opts ...Option) (*Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("sessions pruner is required")
	}
	svc := &Service{
		sessions: sessions,
		interval: 5 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "session cleanup failed", "error", err.Error())
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single cleanup pass.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	deleted, err := s.sessions.PruneExpired(ctx)
	if err != nil {
		s.observe("error")
		return Result{}, fmt.Errorf("prune expired sessions: %w", err)
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "pruned expired sessions", "deleted", deleted)
	}
	s.observe("success")
	return Result{DeletedSessions: deleted}, nil
}

func (s *Service) observe(status string) {
	if s.metrics != nil {
		s.metrics.IncrementCleanupRuns(status)
	}
}
