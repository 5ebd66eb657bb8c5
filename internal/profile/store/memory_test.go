package store

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type InMemoryStoreSuite struct {
	contractSuite
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &InMemoryStoreSuite{contractSuite{newStore: func() profileStore { return NewInMemory() }}})
}

// TestReturnsCopies verifies callers cannot mutate stored state through a
// returned pointer.
func (s *InMemoryStoreSuite) TestReturnsCopies() {
	p := s.newProfile("copy@example.com", 40, nowUTC())
	s.Require().NoError(s.store.CreateIfEmailAvailable(s.ctx, p))

	found, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	found.RiskScore = 1
	*found.Demographics.Age = 99

	again, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(0.08, again.RiskScore)
	s.Equal(40, *again.Demographics.Age)
}
