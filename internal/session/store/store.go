// Package store provides the session persistence backends. Mutations that
// participate in refresh rotation are compare-and-swap operations keyed by
// session ID; backends never serialize unrelated sessions behind one lock.
package store

import (
	"context"
	"time"

	"gatehouse/internal/session/models"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

// ErrRotationMismatch is returned by AdvanceRotation when the caller's
// expected counter is stale. A stale counter on a refresh token means the
// token was already spent.
var ErrRotationMismatch = dErrors.New(dErrors.CodeConflict, "session rotation counter mismatch")

// Rotation carries the new token binding applied atomically with a
// successful rotation advance.
type Rotation struct {
	Expected        int
	At              time.Time
	AccessTokenJTI  string
	RefreshTokenJTI string
}

// Store is the persistence contract for sessions.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*models.Session, error)

	// Touch updates last-activity. Losing a touch is acceptable.
	Touch(ctx context.Context, sessionID id.SessionID, at time.Time) error

	// Revoke marks the session revoked and returns its final state. Revoking
	// an already-revoked session is not an error.
	Revoke(ctx context.Context, sessionID id.SessionID, at time.Time) (*models.Session, error)

	// IsRevoked is the hot-path check consulted on every guarded request.
	IsRevoked(ctx context.Context, sessionID id.SessionID) (bool, error)

	// AdvanceRotation compares the stored counter against rot.Expected and,
	// on match, increments it and records the new token JTIs in one atomic
	// step. A mismatch returns ErrRotationMismatch with the stored session.
	AdvanceRotation(ctx context.Context, sessionID id.SessionID, rot Rotation) (*models.Session, error)

	// DeleteExpired prunes sessions whose expiry is before the cutoff and
	// reports how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}
