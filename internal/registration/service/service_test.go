package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"campusreg/internal/catalog"
	"campusreg/internal/datasync"
	"campusreg/internal/identity"
	"campusreg/internal/membership"
	"campusreg/internal/notify"
	paystore "campusreg/internal/payment/store"
	"campusreg/internal/registration/models"
	"campusreg/internal/registration/service/mocks"
	regstore "campusreg/internal/registration/store"
	teamstore "campusreg/internal/team/store"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/sentinel"
	"campusreg/pkg/testutil"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks PaymentVerifier,EventCatalog

// flakyMembership fails writes on demand.
type flakyMembership struct {
	*membership.InMemory
	failAdd    atomic.Bool
	failRemove atomic.Bool
}

func (f *flakyMembership) AddMembership(ctx context.Context, userID id.UserID, eventID id.EventID) error {
	if f.failAdd.Load() {
		return errors.New("membership backend unavailable")
	}
	return f.InMemory.AddMembership(ctx, userID, eventID)
}

func (f *flakyMembership) RemoveMembership(ctx context.Context, userID id.UserID, eventID id.EventID) error {
	if f.failRemove.Load() {
		return errors.New("membership backend unavailable")
	}
	return f.InMemory.RemoveMembership(ctx, userID, eventID)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Kind)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []datasync.Topic
}

func (r *recordingPublisher) Changed(_ context.Context, topics ...datasync.Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topics...)
}

type ServiceSuite struct {
	suite.Suite
	ctx           context.Context
	verifier      *mocks.MockPaymentVerifier
	notifier      *recordingNotifier
	publisher     *recordingPublisher
	registrations *regstore.InMemory
	teams         *teamstore.InMemory
	membership    *flakyMembership
	payments      *paystore.InMemoryRecords
	svc           *Service

	freeEvent     *catalog.Event
	teamEvent     *catalog.Event
	paidEvent     *catalog.Event
	paidTeamEvent *catalog.Event
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	ctrl := gomock.NewController(s.T())
	s.verifier = mocks.NewMockPaymentVerifier(ctrl)
	s.notifier = &recordingNotifier{}
	s.publisher = &recordingPublisher{}

	club := id.ClubID(uuid.New())
	fee := &catalog.Money{AmountCents: 1500, Currency: "usd"}
	s.freeEvent = &catalog.Event{ID: id.EventID(uuid.New()), ClubID: club, Title: "Intro to Go", RegistrationMode: catalog.ModeIndividual}
	s.teamEvent = &catalog.Event{ID: id.EventID(uuid.New()), ClubID: club, Title: "Hackathon", RegistrationMode: catalog.ModeTeam, MaxTeamSize: 3}
	s.paidEvent = &catalog.Event{ID: id.EventID(uuid.New()), ClubID: club, Title: "Gala", Fee: fee, RegistrationMode: catalog.ModeIndividual}
	s.paidTeamEvent = &catalog.Event{ID: id.EventID(uuid.New()), ClubID: club, Title: "Robotics Cup", Fee: fee, RegistrationMode: catalog.ModeTeam}

	s.registrations = regstore.NewInMemory()
	s.teams = teamstore.NewInMemory()
	s.membership = &flakyMembership{InMemory: membership.NewInMemory()}
	s.payments = paystore.NewInMemoryRecords()
	stores := Stores{
		Registrations: s.registrations,
		Teams:         s.teams,
		Memberships:   s.membership,
		Payments:      s.payments,
	}
	s.svc = New(NewShardedTx(stores, 0), stores,
		catalog.NewInMemory(s.freeEvent, s.teamEvent, s.paidEvent, s.paidTeamEvent),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNotifier(s.notifier),
		WithPublisher(s.publisher),
		WithPaymentVerifier(s.verifier),
		WithDirectory(identity.NewInMemory()),
	)
}

func (s *ServiceSuite) newUser() id.UserID {
	return id.UserID(uuid.New())
}

func (s *ServiceSuite) register(userID id.UserID, event *catalog.Event) (*models.Registration, error) {
	return s.svc.RegisterIndividual(s.ctx, RegisterCommand{EventID: event.ID, Registrant: models.Member(userID)})
}

func (s *ServiceSuite) members(eventID id.EventID) []id.UserID {
	users, err := s.membership.MembersOf(s.ctx, eventID)
	s.Require().NoError(err)
	return users
}

func (s *ServiceSuite) TestScenario() {
	t := s.T()
	u, v := s.newUser(), s.newUser()
	e, e2 := s.freeEvent, s.teamEvent

	var first *models.Registration
	testutil.Given(t, "a free event E", func(t *testing.T) {
		testutil.When(t, "U registers for E", func(t *testing.T) {
			reg, err := s.register(u, e)
			require.NoError(t, err)
			first = reg

			testutil.Then(t, "U is registered and listed as a member", func(t *testing.T) {
				ok, err := s.svc.IsRegistered(s.ctx, u, e.ID)
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Contains(t, s.members(e.ID), u)
			})
		})
		testutil.When(t, "U registers again", func(t *testing.T) {
			reg, err := s.register(u, e)
			testutil.Then(t, "the same record is returned without a duplicate", func(t *testing.T) {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))
				require.NotNil(t, reg)
				assert.Equal(t, first.ID, reg.ID)
				regs, err := s.svc.ListEventRegistrations(s.ctx, e.ID)
				require.NoError(t, err)
				assert.Len(t, regs, 1)
			})
		})
	})

	var alpha id.TeamID
	testutil.Given(t, "a team event E2", func(t *testing.T) {
		testutil.When(t, "U creates team Alpha twice", func(t *testing.T) {
			team, err := s.svc.CreateTeam(s.ctx, e2.ID, "Alpha", u)
			require.NoError(t, err)
			alpha = team.ID
			_, err = s.svc.CreateTeam(s.ctx, e2.ID, "Alpha", u)

			testutil.Then(t, "the second call fails with DuplicateTeamName", func(t *testing.T) {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateTeamName))
			})
		})
		testutil.When(t, "V joins Alpha and registers for E2", func(t *testing.T) {
			_, err := s.svc.JoinTeam(s.ctx, e2.ID, alpha, v)
			require.NoError(t, err)
			reg, err := s.svc.RegisterForTeamEvent(s.ctx, v, e2.ID, alpha, models.Metadata{})

			testutil.Then(t, "a confirmed record is created", func(t *testing.T) {
				require.NoError(t, err)
				assert.Equal(t, models.StatusConfirmed, reg.Status)
				require.NotNil(t, reg.TeamID)
				assert.Equal(t, alpha, *reg.TeamID)
			})
		})
		testutil.When(t, "V tries to join a different team for E2", func(t *testing.T) {
			other, err := s.svc.CreateTeam(s.ctx, e2.ID, "Beta", s.newUser())
			require.NoError(t, err)
			_, err = s.svc.JoinTeam(s.ctx, e2.ID, other.ID, v)

			testutil.Then(t, "it fails with AlreadyOnTeam", func(t *testing.T) {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyOnTeam))
			})
		})
	})
}

func (s *ServiceSuite) TestRepeatedRegistrationYieldsOneConfirmedRecord() {
	u := s.newUser()
	var ids []id.RegistrationID
	for range 5 {
		reg, err := s.register(u, s.freeEvent)
		if err != nil {
			s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))
		}
		s.Require().NotNil(reg)
		ids = append(ids, reg.ID)
	}
	for _, got := range ids {
		s.Equal(ids[0], got)
	}
	ok, err := s.svc.IsRegistered(s.ctx, u, s.freeEvent.ID)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *ServiceSuite) TestConcurrentDoubleRegister() {
	u := s.newUser()
	const attempts = 20

	var (
		wg         sync.WaitGroup
		created    atomic.Int32
		duplicates atomic.Int32
		mu         sync.Mutex
		seen       = map[id.RegistrationID]struct{}{}
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg, err := s.register(u, s.freeEvent)
			switch {
			case err == nil:
				created.Add(1)
			case dErrors.HasCode(err, dErrors.CodeAlreadyRegistered):
				duplicates.Add(1)
			default:
				s.Failf("unexpected error", "%v", err)
				return
			}
			mu.Lock()
			seen[reg.ID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(attempts-1), duplicates.Load())
	s.Len(seen, 1, "every caller observes the same record")
	s.Equal([]id.UserID{u}, s.members(s.freeEvent.ID))
}

func (s *ServiceSuite) TestGuestsAreKeyedByEmail() {
	first, err := s.svc.RegisterIndividual(s.ctx, RegisterCommand{
		EventID:    s.freeEvent.ID,
		Registrant: models.Guest("Ada Lovelace", "Ada@Example.edu", "555-0100"),
	})
	s.Require().NoError(err)
	s.Equal(id.GuestUserID("ada@example.edu"), first.UserID)

	again, err := s.svc.RegisterIndividual(s.ctx, RegisterCommand{
		EventID:    s.freeEvent.ID,
		Registrant: models.Guest("Ada", "ADA@example.edu", ""),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))
	s.Equal(first.ID, again.ID)
	s.Contains(s.members(s.freeEvent.ID), first.UserID)
}

func (s *ServiceSuite) TestMembershipFailureLeavesNoConfirmedRecord() {
	u := s.newUser()
	s.membership.failAdd.Store(true)

	_, err := s.register(u, s.freeEvent)
	s.True(dErrors.HasCode(err, dErrors.CodeMembershipWriteFailed))

	ok, err := s.svc.IsRegistered(s.ctx, u, s.freeEvent.ID)
	s.Require().NoError(err)
	s.False(ok)
	s.Empty(s.members(s.freeEvent.ID))

	regs, err := s.svc.ListEventRegistrations(s.ctx, s.freeEvent.ID)
	s.Require().NoError(err)
	s.Require().Len(regs, 1)
	s.Equal(models.StatusFailed, regs[0].Status, "pending record is compensated")

	s.membership.failAdd.Store(false)
	reg, err := s.register(u, s.freeEvent)
	s.Require().NoError(err, "the caller may retry")
	s.Equal(models.StatusConfirmed, reg.Status)
	s.NoError(s.membership.Verify())
}

func (s *ServiceSuite) TestFeeBearingEventRequiresPayment() {
	u := s.newUser()
	_, err := s.register(u, s.paidEvent)
	s.True(dErrors.HasCode(err, dErrors.CodePaymentRequired))

	regs, err := s.svc.ListEventRegistrations(s.ctx, s.paidEvent.ID)
	s.Require().NoError(err)
	s.Empty(regs, "no record exists before payment succeeds")
	s.Contains(s.notifier.kinds(), notify.KindPaymentRequired)
}

func (s *ServiceSuite) TestRegisterForPaidEvent() {
	u := s.newUser()
	s.verifier.EXPECT().
		VerifyPayment(gomock.Any(), id.PaymentID("pi_ok"), u, s.paidEvent.ID).
		Return(catalog.Money{AmountCents: 1500, Currency: "usd"}, nil)

	reg, err := s.svc.RegisterForPaidEvent(s.ctx, PaidRegisterCommand{
		EventID:    s.paidEvent.ID,
		Registrant: models.Member(u),
		PaymentID:  "pi_ok",
	})
	s.Require().NoError(err)
	s.Equal(models.StatusConfirmed, reg.Status)
	s.Equal(models.PaymentStatusPaid, reg.PaymentStatus)

	rec, err := s.payments.FindByRegistration(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(id.PaymentID("pi_ok"), rec.PaymentID)
	s.Equal(int64(1500), rec.Amount.AmountCents)

	_, err = s.register(u, s.paidEvent)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered), "a paid registrant is not sent to checkout again")
}

func (s *ServiceSuite) TestSecondPaymentIsKeptAsDuplicate() {
	u := s.newUser()
	fee := catalog.Money{AmountCents: 1500, Currency: "usd"}
	s.verifier.EXPECT().VerifyPayment(gomock.Any(), gomock.Any(), u, s.paidEvent.ID).Return(fee, nil).Times(3)
	pay := func(paymentID id.PaymentID) (*models.Registration, error) {
		return s.svc.RegisterForPaidEvent(s.ctx, PaidRegisterCommand{
			EventID:    s.paidEvent.ID,
			Registrant: models.Member(u),
			PaymentID:  paymentID,
		})
	}

	reg, err := pay("pi_first")
	s.Require().NoError(err)

	again, err := pay("pi_second")
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))
	s.Require().NotNil(again)
	s.Equal(reg.ID, again.ID)

	extra, err := s.payments.FindByPaymentID(s.ctx, "pi_second")
	s.Require().NoError(err)
	s.True(extra.Duplicate)
	s.Equal(reg.ID, extra.RegistrationID)
	s.Equal(int64(1500), extra.Amount.AmountCents)

	backing, err := s.payments.FindByRegistration(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(id.PaymentID("pi_first"), backing.PaymentID)

	// Replaying the payment that created the registration records nothing new.
	_, err = pay("pi_first")
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))
	first, err := s.payments.FindByPaymentID(s.ctx, "pi_first")
	s.Require().NoError(err)
	s.False(first.Duplicate)
}

func (s *ServiceSuite) TestRegisterForPaidEvent_VerificationFailures() {
	u := s.newUser()
	cmd := func(paymentID id.PaymentID) PaidRegisterCommand {
		return PaidRegisterCommand{EventID: s.paidEvent.ID, Registrant: models.Member(u), PaymentID: paymentID}
	}

	s.Run("gateway does not confirm the payment", func() {
		s.verifier.EXPECT().VerifyPayment(gomock.Any(), id.PaymentID("pi_bad"), u, s.paidEvent.ID).
			Return(catalog.Money{}, errors.New("unknown payment"))
		_, err := s.svc.RegisterForPaidEvent(s.ctx, cmd("pi_bad"))
		s.True(dErrors.HasCode(err, dErrors.CodePaymentVerificationFailed))
	})

	s.Run("payment does not cover the fee", func() {
		s.verifier.EXPECT().VerifyPayment(gomock.Any(), id.PaymentID("pi_low"), u, s.paidEvent.ID).
			Return(catalog.Money{AmountCents: 100, Currency: "usd"}, nil)
		_, err := s.svc.RegisterForPaidEvent(s.ctx, cmd("pi_low"))
		s.True(dErrors.HasCode(err, dErrors.CodePaymentVerificationFailed))
	})

	s.Run("missing payment id", func() {
		_, err := s.svc.RegisterForPaidEvent(s.ctx, cmd(""))
		s.True(dErrors.HasCode(err, dErrors.CodePaymentVerificationFailed))
	})

	regs, err := s.svc.ListEventRegistrations(s.ctx, s.paidEvent.ID)
	s.Require().NoError(err)
	s.Empty(regs)
}

func (s *ServiceSuite) TestPaymentCannotBeReused() {
	first, second := s.newUser(), s.newUser()
	paid := catalog.Money{AmountCents: 1500, Currency: "usd"}
	s.verifier.EXPECT().VerifyPayment(gomock.Any(), id.PaymentID("pi_shared"), gomock.Any(), s.paidEvent.ID).
		Return(paid, nil).Times(2)

	_, err := s.svc.RegisterForPaidEvent(s.ctx, PaidRegisterCommand{EventID: s.paidEvent.ID, Registrant: models.Member(first), PaymentID: "pi_shared"})
	s.Require().NoError(err)
	_, err = s.svc.RegisterForPaidEvent(s.ctx, PaidRegisterCommand{EventID: s.paidEvent.ID, Registrant: models.Member(second), PaymentID: "pi_shared"})
	s.True(dErrors.HasCode(err, dErrors.CodePaymentVerificationFailed))

	ok, err := s.svc.IsRegistered(s.ctx, second, s.paidEvent.ID)
	s.Require().NoError(err)
	s.False(ok)
	s.Equal([]id.UserID{first}, s.members(s.paidEvent.ID))
}

func (s *ServiceSuite) TestCancelIsIdempotent() {
	u := s.newUser()
	reg, err := s.register(u, s.freeEvent)
	s.Require().NoError(err)

	once, err := s.svc.Cancel(s.ctx, reg.ID)
	s.Require().NoError(err)
	twice, err := s.svc.Cancel(s.ctx, reg.ID)
	s.Require().NoError(err)

	s.Equal(models.StatusCancelled, once.Status)
	s.Equal(once.Status, twice.Status)
	s.Equal(once.CancelledAt, twice.CancelledAt)
	s.Empty(s.members(s.freeEvent.ID))
	s.Equal(1, count(s.notifier.kinds(), notify.KindRegistrationCancelled))

	again, err := s.register(u, s.freeEvent)
	s.Require().NoError(err, "cancellation frees the pair")
	s.NotEqual(reg.ID, again.ID)
}

func (s *ServiceSuite) TestCancelMembershipFailureKeepsRegistration() {
	u := s.newUser()
	reg, err := s.register(u, s.freeEvent)
	s.Require().NoError(err)

	s.membership.failRemove.Store(true)
	_, err = s.svc.Cancel(s.ctx, reg.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeMembershipWriteFailed))

	got, err := s.svc.GetRegistration(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusConfirmed, got.Status)
	s.Contains(s.members(s.freeEvent.ID), u)
}

func (s *ServiceSuite) TestCancelTeamRegistrationFreesRoster() {
	creator, member := s.newUser(), s.newUser()
	alpha, err := s.svc.CreateTeam(s.ctx, s.teamEvent.ID, "Alpha", creator)
	s.Require().NoError(err)
	_, err = s.svc.JoinTeam(s.ctx, s.teamEvent.ID, alpha.ID, member)
	s.Require().NoError(err)
	reg, err := s.svc.RegisterForTeamEvent(s.ctx, member, s.teamEvent.ID, alpha.ID, models.Metadata{})
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, reg.ID)
	s.Require().NoError(err)

	team, err := s.teams.FindByID(s.ctx, s.teamEvent.ID, alpha.ID)
	s.Require().NoError(err)
	s.False(team.HasMember(member))

	beta, err := s.svc.CreateTeam(s.ctx, s.teamEvent.ID, "Beta", s.newUser())
	s.Require().NoError(err)
	_, err = s.svc.JoinTeam(s.ctx, s.teamEvent.ID, beta.ID, member)
	s.NoError(err, "a cancelled member may join another team")
}

func (s *ServiceSuite) TestCancellingLastMemberReleasesTeamName() {
	creator := s.newUser()
	solo, err := s.svc.CreateTeam(s.ctx, s.teamEvent.ID, "Solo", creator)
	s.Require().NoError(err)
	reg, err := s.svc.RegisterForTeamEvent(s.ctx, creator, s.teamEvent.ID, solo.ID, models.Metadata{})
	s.Require().NoError(err)

	_, err = s.svc.Cancel(s.ctx, reg.ID)
	s.Require().NoError(err)

	_, err = s.teams.FindByID(s.ctx, s.teamEvent.ID, solo.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	again, err := s.svc.CreateTeam(s.ctx, s.teamEvent.ID, "SOLO", s.newUser())
	s.Require().NoError(err, "the name is free once the roster is empty")
	s.NotEqual(solo.ID, again.ID)
}

func (s *ServiceSuite) TestTeamNamesAreCaseInsensitive() {
	_, err := s.svc.CreateTeam(s.ctx, s.teamEvent.ID, "Night Owls", s.newUser())
	s.Require().NoError(err)
	_, err = s.svc.CreateTeam(s.ctx, s.teamEvent.ID, "NIGHT OWLS", s.newUser())
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateTeamName))
}

func (s *ServiceSuite) TestJoinTeamRules() {
	creator := s.newUser()
	alpha, err := s.svc.CreateTeam(s.ctx, s.teamEvent.ID, "Alpha", creator)
	s.Require().NoError(err)

	s.Run("unknown team", func() {
		_, err := s.svc.JoinTeam(s.ctx, s.teamEvent.ID, id.TeamID(uuid.New()), s.newUser())
		s.True(dErrors.HasCode(err, dErrors.CodeTeamNotFound))
	})

	s.Run("rejoining the same team is a no-op", func() {
		team, err := s.svc.JoinTeam(s.ctx, s.teamEvent.ID, alpha.ID, creator)
		s.Require().NoError(err)
		s.Len(team.Members, 1)
	})

	s.Run("creator of one team cannot create another", func() {
		_, err := s.svc.CreateTeam(s.ctx, s.teamEvent.ID, "Gamma", creator)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyOnTeam))
	})

	s.Run("capacity is enforced", func() {
		_, err := s.svc.JoinTeam(s.ctx, s.teamEvent.ID, alpha.ID, s.newUser())
		s.Require().NoError(err)
		_, err = s.svc.JoinTeam(s.ctx, s.teamEvent.ID, alpha.ID, s.newUser())
		s.Require().NoError(err)
		_, err = s.svc.JoinTeam(s.ctx, s.teamEvent.ID, alpha.ID, s.newUser())
		s.True(dErrors.HasCode(err, dErrors.CodeTeamFull))
	})

	s.Run("individual events have no teams", func() {
		_, err := s.svc.CreateTeam(s.ctx, s.freeEvent.ID, "Solo", s.newUser())
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestConcurrentJoinsRespectCapacity() {
	alpha, err := s.svc.CreateTeam(s.ctx, s.teamEvent.ID, "Crowded", s.newUser())
	s.Require().NoError(err)

	var wg sync.WaitGroup
	var joined, full atomic.Int32
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.JoinTeam(s.ctx, s.teamEvent.ID, alpha.ID, s.newUser())
			switch {
			case err == nil:
				joined.Add(1)
			case dErrors.HasCode(err, dErrors.CodeTeamFull):
				full.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(2), joined.Load())
	s.Equal(int32(8), full.Load())
	team, err := s.teams.FindByID(s.ctx, s.teamEvent.ID, alpha.ID)
	s.Require().NoError(err)
	s.Len(team.Members, 3)
}

func (s *ServiceSuite) TestRegisterForTeamEventRequiresRoster() {
	alpha, err := s.svc.CreateTeam(s.ctx, s.teamEvent.ID, "Alpha", s.newUser())
	s.Require().NoError(err)

	_, err = s.svc.RegisterForTeamEvent(s.ctx, s.newUser(), s.teamEvent.ID, alpha.ID, models.Metadata{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotTeamMember))

	_, err = s.svc.RegisterIndividual(s.ctx, RegisterCommand{EventID: s.teamEvent.ID, Registrant: models.Member(s.newUser())})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestPaidTeamEventRequiresPaymentAfterRosterCheck() {
	creator := s.newUser()
	team, err := s.svc.CreateTeam(s.ctx, s.paidTeamEvent.ID, "Paid Team", creator)
	s.Require().NoError(err)

	_, err = s.svc.RegisterForTeamEvent(s.ctx, s.newUser(), s.paidTeamEvent.ID, team.ID, models.Metadata{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotTeamMember))

	_, err = s.svc.RegisterForTeamEvent(s.ctx, creator, s.paidTeamEvent.ID, team.ID, models.Metadata{})
	s.True(dErrors.HasCode(err, dErrors.CodePaymentRequired))

	s.verifier.EXPECT().VerifyPayment(gomock.Any(), id.PaymentID("pi_team"), creator, s.paidTeamEvent.ID).
		Return(catalog.Money{AmountCents: 1500, Currency: "usd"}, nil)
	reg, err := s.svc.RegisterForPaidEvent(s.ctx, PaidRegisterCommand{
		EventID:    s.paidTeamEvent.ID,
		Registrant: models.Member(creator),
		TeamID:     &team.ID,
		PaymentID:  "pi_team",
	})
	s.Require().NoError(err)
	s.Equal(team.ID, *reg.TeamID)
}

// TestMembershipIndexMatchesConfirmedRecords interleaves registrations and
// cancellations across users and checks both projections against the records.
func (s *ServiceSuite) TestMembershipIndexMatchesConfirmedRecords() {
	users := make([]id.UserID, 8)
	for i := range users {
		users[i] = s.newUser()
	}

	var wg sync.WaitGroup
	for round := range 4 {
		for i, u := range users {
			wg.Add(1)
			go func() {
				defer wg.Done()
				reg, err := s.register(u, s.freeEvent)
				if err != nil && !dErrors.HasCode(err, dErrors.CodeAlreadyRegistered) {
					return
				}
				if (i+round)%3 == 0 {
					_, _ = s.svc.Cancel(s.ctx, reg.ID)
				}
			}()
		}
	}
	wg.Wait()

	s.Require().NoError(s.membership.Verify())
	regs, err := s.svc.ListEventRegistrations(s.ctx, s.freeEvent.ID)
	s.Require().NoError(err)
	confirmed := map[id.UserID]bool{}
	for _, r := range regs {
		if r.IsConfirmed() {
			s.False(confirmed[r.UserID], "one confirmed record per user")
			confirmed[r.UserID] = true
		}
	}
	members := s.members(s.freeEvent.ID)
	s.Len(members, len(confirmed))
	for _, m := range members {
		s.True(confirmed[m])
		events, err := s.membership.EventsOf(s.ctx, m)
		s.Require().NoError(err)
		s.Contains(events, s.freeEvent.ID)
	}
}

func (s *ServiceSuite) TestPublishesChangesAfterCommit() {
	u := s.newUser()
	_, err := s.register(u, s.freeEvent)
	s.Require().NoError(err)

	s.ElementsMatch(datasync.RegistrationTopics(u, s.freeEvent.ID), s.publisher.topics)
	s.Contains(s.notifier.kinds(), notify.KindRegistrationSucceeded)

	_, _ = s.register(u, s.freeEvent)
	s.Len(s.publisher.topics, 2, "duplicates publish nothing")
}

func (s *ServiceSuite) TestSearchTeams() {
	for _, name := range []string{"Alpha", "Alpine", "Beta"} {
		_, err := s.svc.CreateTeam(s.ctx, s.teamEvent.ID, name, s.newUser())
		s.Require().NoError(err)
	}
	teams, err := s.svc.SearchTeams(s.ctx, s.teamEvent.ID, "alp", 0)
	s.Require().NoError(err)
	s.Len(teams, 2)
}

func (s *ServiceSuite) TestUnknownEvent() {
	_, err := s.register(s.newUser(), &catalog.Event{ID: id.EventID(uuid.New())})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestService_CatalogErrorsSurface(t *testing.T) {
	ctrl := gomock.NewController(t)
	events := mocks.NewMockEventCatalog(ctrl)
	eventID := id.EventID(uuid.New())
	events.EXPECT().FindEvent(gomock.Any(), eventID).Return(nil, errors.New("content service down"))

	stores := Stores{
		Registrations: regstore.NewInMemory(),
		Teams:         teamstore.NewInMemory(),
		Memberships:   membership.NewInMemory(),
		Payments:      paystore.NewInMemoryRecords(),
	}
	svc := New(NewShardedTx(stores, 0), stores, events, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := svc.RegisterIndividual(context.Background(), RegisterCommand{EventID: eventID, Registrant: models.Member(id.UserID(uuid.New()))})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(err))
	assert.Equal(t, "event not found", dErrors.MessageOf(err))
}

func count[T comparable](xs []T, x T) int {
	n := 0
	for _, v := range xs {
		if v == x {
			n++
		}
	}
	return n
}
