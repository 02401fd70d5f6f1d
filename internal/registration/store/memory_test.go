package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"campusreg/internal/registration/models"
	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	event id.EventID
	user  id.UserID
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.event = id.EventID(uuid.New())
	s.user = id.UserID(uuid.New())
}

func (s *InMemorySuite) newConfirmed() *models.Registration {
	r, err := models.NewPending(id.RegistrationID(uuid.New()), s.event, id.ClubID(uuid.New()),
		models.Member(s.user), models.Metadata{}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(r.Confirm(time.Now()))
	return r
}

func (s *InMemorySuite) TestOneConfirmedPerPair() {
	first := s.newConfirmed()
	s.Require().NoError(s.store.Create(s.ctx, first))

	second := s.newConfirmed()
	err := s.store.Create(s.ctx, second)
	s.ErrorIs(err, sentinel.ErrConflict)

	found, err := s.store.FindConfirmed(s.ctx, s.event, s.user)
	s.Require().NoError(err)
	s.Equal(first.ID, found.ID)
}

func (s *InMemorySuite) TestCancellationFreesThePair() {
	first := s.newConfirmed()
	s.Require().NoError(s.store.Create(s.ctx, first))

	first.ApplyCancellation(time.Now())
	s.Require().NoError(s.store.Update(s.ctx, first))

	_, err := s.store.FindConfirmed(s.ctx, s.event, s.user)
	s.ErrorIs(err, sentinel.ErrNotFound)

	again := s.newConfirmed()
	s.Require().NoError(s.store.Create(s.ctx, again))
}

func (s *InMemorySuite) TestReturnsCopies() {
	r := s.newConfirmed()
	r.Fields = map[string]string{"shirt": "M"}
	s.Require().NoError(s.store.Create(s.ctx, r))

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	found.Fields["shirt"] = "XL"
	found.Status = models.StatusFailed

	again, _ := s.store.FindByID(s.ctx, r.ID)
	s.Equal("M", again.Fields["shirt"])
	s.Equal(models.StatusConfirmed, again.Status)
}

func (s *InMemorySuite) TestUpdateUnknownIsNotFound() {
	err := s.store.Update(s.ctx, s.newConfirmed())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestListByEventIsOrdered() {
	base := time.Now()
	for i := 0; i < 3; i++ {
		r, err := models.NewPending(id.RegistrationID(uuid.New()), s.event, id.ClubID(uuid.New()),
			models.Member(id.UserID(uuid.New())), models.Metadata{}, base.Add(time.Duration(2-i)*time.Minute))
		s.Require().NoError(err)
		s.Require().NoError(s.store.Create(s.ctx, r))
	}
	list, err := s.store.ListByEvent(s.ctx, s.event)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.True(list[0].CreatedAt.Before(list[1].CreatedAt))
	s.True(list[1].CreatedAt.Before(list[2].CreatedAt))
}
