package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"gatehouse/internal/session/models"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.now = time.Now()
}

func (s *InMemoryStoreSuite) newSession() *models.Session {
	return &models.Session{
		ID:          id.NewSessionID(),
		PrincipalID: id.NewPrincipalID(),
		CreatedAt:   s.now,
		LastSeenAt:  s.now,
		ExpiresAt:   s.now.Add(time.Hour),
	}
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	session := s.newSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	found, err := s.store.FindByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(session.ID, found.ID)
	s.Equal(session.PrincipalID, found.PrincipalID)
	s.Zero(found.Rotation)
}

func (s *InMemoryStoreSuite) TestCreateDuplicateFails() {
	session := s.newSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	err := s.store.Create(s.ctx, session)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *InMemoryStoreSuite) TestFindMissingReturnsNotFound() {
	_, err := s.store.FindByID(s.ctx, id.NewSessionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *InMemoryStoreSuite) TestFindReturnsCopy() {
	session := s.newSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	found, err := s.store.FindByID(s.ctx, session.ID)
	s.Require().NoError(err)
	found.Rotation = 42

	again, err := s.store.FindByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Zero(again.Rotation)
}

func (s *InMemoryStoreSuite) TestListByPrincipal() {
	principal := id.NewPrincipalID()
	for range 3 {
		session := s.newSession()
		session.PrincipalID = principal
		s.Require().NoError(s.store.Create(s.ctx, session))
	}
	s.Require().NoError(s.store.Create(s.ctx, s.newSession()))

	sessions, err := s.store.ListByPrincipal(s.ctx, principal)
	s.Require().NoError(err)
	s.Len(sessions, 3)
}

func (s *InMemoryStoreSuite) TestTouchAdvancesLastSeen() {
	session := s.newSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	later := s.now.Add(5 * time.Minute)
	s.Require().NoError(s.store.Touch(s.ctx, session.ID, later))

	found, err := s.store.FindByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.True(found.LastSeenAt.Equal(later))
}

func (s *InMemoryStoreSuite) TestTouchIgnoresStaleTimestamp() {
	session := s.newSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	s.Require().NoError(s.store.Touch(s.ctx, session.ID, s.now.Add(-time.Minute)))

	found, err := s.store.FindByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.True(found.LastSeenAt.Equal(s.now))
}

func (s *InMemoryStoreSuite) TestRevokeIsIdempotent() {
	session := s.newSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	first, err := s.store.Revoke(s.ctx, session.ID, s.now)
	s.Require().NoError(err)
	s.True(first.Revoked)

	second, err := s.store.Revoke(s.ctx, session.ID, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.True(second.Revoked)
	s.True(second.RevokedAt.Equal(s.now), "revocation time must not move on repeat revokes")

	revoked, err := s.store.IsRevoked(s.ctx, session.ID)
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *InMemoryStoreSuite) TestAdvanceRotation() {
	session := s.newSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	updated, err := s.store.AdvanceRotation(s.ctx, session.ID, Rotation{
		Expected:        0,
		At:              s.now.Add(time.Minute),
		AccessTokenJTI:  "jti-a1",
		RefreshTokenJTI: "jti-r1",
	})
	s.Require().NoError(err)
	s.Equal(1, updated.Rotation)
	s.Equal("jti-a1", updated.AccessTokenJTI)
	s.Equal("jti-r1", updated.RefreshTokenJTI)
}

func (s *InMemoryStoreSuite) TestAdvanceRotationStaleCounter() {
	session := s.newSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	_, err := s.store.AdvanceRotation(s.ctx, session.ID, Rotation{Expected: 0, At: s.now})
	s.Require().NoError(err)

	stored, err := s.store.AdvanceRotation(s.ctx, session.ID, Rotation{Expected: 0, At: s.now})
	s.Require().ErrorIs(err, ErrRotationMismatch)
	s.Equal(1, stored.Rotation)
}

func (s *InMemoryStoreSuite) TestConcurrentRotationAdvancesExactlyOnce() {
	session := s.newSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	const attempts = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.AdvanceRotation(s.ctx, session.ID, Rotation{Expected: 0, At: s.now})
			if err == nil {
				successes <- struct{}{}
			} else if !errors.Is(err, ErrRotationMismatch) {
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	require.Equal(s.T(), 1, count, "only one concurrent refresh may win")
}

func (s *InMemoryStoreSuite) TestDeleteExpired() {
	expired := s.newSession()
	expired.ExpiresAt = s.now.Add(-time.Minute)
	s.Require().NoError(s.store.Create(s.ctx, expired))

	live := s.newSession()
	s.Require().NoError(s.store.Create(s.ctx, live))

	removed, err := s.store.DeleteExpired(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(1, removed)

	_, err = s.store.FindByID(s.ctx, expired.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.store.FindByID(s.ctx, live.ID)
	s.NoError(err)
}
