package store

import (
	"context"
	"sync"
	"time"

	"gatehouse/internal/session/models"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
	psync "gatehouse/pkg/platform/sync"
)

// InMemoryStore keeps sessions in a sync.Map with per-session locking, so
// mutations on one session never block another.
type InMemoryStore struct {
	sessions sync.Map // id.SessionID -> *models.Session
	locks    psync.ShardedMutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Create(_ context.Context, session *models.Session) error {
	if session == nil || session.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "session is missing an ID")
	}
	cloned := *session
	if _, loaded := s.sessions.LoadOrStore(session.ID, &cloned); loaded {
		return dErrors.New(dErrors.CodeConflict, "session already exists")
	}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.locks.Lock(sessionID.String())
	defer s.locks.Unlock(sessionID.String())

	stored, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	cloned := *stored
	return &cloned, nil
}

func (s *InMemoryStore) ListByPrincipal(_ context.Context, principalID id.PrincipalID) ([]*models.Session, error) {
	var out []*models.Session
	s.sessions.Range(func(_, value any) bool {
		stored := value.(*models.Session)
		s.locks.Lock(stored.ID.String())
		if stored.PrincipalID == principalID {
			cloned := *stored
			out = append(out, &cloned)
		}
		s.locks.Unlock(stored.ID.String())
		return true
	})
	return out, nil
}

func (s *InMemoryStore) Touch(_ context.Context, sessionID id.SessionID, at time.Time) error {
	s.locks.Lock(sessionID.String())
	defer s.locks.Unlock(sessionID.String())

	stored, err := s.load(sessionID)
	if err != nil {
		return err
	}
	if at.After(stored.LastSeenAt) {
		stored.RecordActivity(at)
	}
	return nil
}

func (s *InMemoryStore) Revoke(_ context.Context, sessionID id.SessionID, at time.Time) (*models.Session, error) {
	s.locks.Lock(sessionID.String())
	defer s.locks.Unlock(sessionID.String())

	stored, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	stored.Revoke(at)
	cloned := *stored
	return &cloned, nil
}

func (s *InMemoryStore) IsRevoked(_ context.Context, sessionID id.SessionID) (bool, error) {
	s.locks.Lock(sessionID.String())
	defer s.locks.Unlock(sessionID.String())

	stored, err := s.load(sessionID)
	if err != nil {
		return false, err
	}
	return stored.Revoked, nil
}

func (s *InMemoryStore) AdvanceRotation(_ context.Context, sessionID id.SessionID, rot Rotation) (*models.Session, error) {
	s.locks.Lock(sessionID.String())
	defer s.locks.Unlock(sessionID.String())

	stored, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	if stored.Rotation != rot.Expected {
		cloned := *stored
		return &cloned, ErrRotationMismatch
	}
	stored.Rotation++
	stored.ApplyTokenJTIs(rot.AccessTokenJTI, rot.RefreshTokenJTI)
	stored.RecordActivity(rot.At)
	cloned := *stored
	return &cloned, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	removed := 0
	s.sessions.Range(func(key, value any) bool {
		stored := value.(*models.Session)
		s.locks.Lock(stored.ID.String())
		if stored.IsExpired(cutoff) {
			s.sessions.Delete(key)
			removed++
		}
		s.locks.Unlock(stored.ID.String())
		return true
	})
	return removed, nil
}

// load must be called with the session's shard lock held.
func (s *InMemoryStore) load(sessionID id.SessionID) (*models.Session, error) {
	value, ok := s.sessions.Load(sessionID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return value.(*models.Session), nil
}
