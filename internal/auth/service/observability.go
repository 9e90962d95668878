package service

import (
	"context"

	"gatehouse/pkg/requestcontext"
)

// Observability helpers shared by the auth flows.

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) authFailure(ctx context.Context, reason string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", "auth_failed", "reason", reason, "log_type", "standard")
	s.logger.WarnContext(ctx, "auth_failed", args...)
	if s.metrics != nil {
		s.metrics.IncrementAuthFailures()
	}
}
