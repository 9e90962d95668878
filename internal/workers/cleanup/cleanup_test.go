package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type stubPruner struct {
	calls   int
	deleted int
	err     error
}

func (p *stubPruner) PruneExpired(context.Context) (int, error) {
	p.calls++
	return p.deleted, p.err
}

type CleanupSuite struct {
	suite.Suite
	pruner  *stubPruner
	service *Service
}

func TestCleanupSuite(t *testing.T) {
	suite.Run(t, new(CleanupSuite))
}

func (s *CleanupSuite) SetupTest() {
	s.pruner = &stubPruner{}
	svc, err := New(s.pruner)
	s.Require().NoError(err)
	s.service = svc
}

func (s *CleanupSuite) TestRunOnceReportsDeletions() {
	s.pruner.deleted = 4

	result, err := s.service.RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(1, s.pruner.calls)
	s.Equal(4, result.DeletedSessions)
}

func (s *CleanupSuite) TestRunOnceHandlesEmptyStore() {
	result, err := s.service.RunOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(0, result.DeletedSessions)
}

func (s *CleanupSuite) TestRunOncePropagatesStoreErrors() {
	s.pruner.err = context.DeadlineExceeded

	_, err := s.service.RunOnce(context.Background())
	s.Require().Error(err)
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *CleanupSuite) TestNewRequiresPruner() {
	_, err := New(nil)
	s.Error(err)
}

func (s *CleanupSuite) TestStartStopsOnContextCancel() {
	svc, err := New(s.pruner, WithInterval(time.Millisecond))
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = svc.Start(ctx)
	s.ErrorIs(err, context.DeadlineExceeded)
	s.Positive(s.pruner.calls)
}
