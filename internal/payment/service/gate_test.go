package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"campusreg/internal/catalog"
	"campusreg/internal/notify"
	"campusreg/internal/payment/gateway"
	"campusreg/internal/payment/models"
	"campusreg/internal/payment/service/mocks"
	paystore "campusreg/internal/payment/store"
	regmodels "campusreg/internal/registration/models"
	teammodels "campusreg/internal/team/models"
	teamstore "campusreg/internal/team/store"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/sentinel"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Registrar

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) last() notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

type GateSuite struct {
	suite.Suite
	ctx       context.Context
	registrar *mocks.MockRegistrar
	orders    *paystore.InMemoryOrders
	teams     *teamstore.InMemory
	stub      *gateway.Stub
	notifier  *recordingNotifier
	gate      *Gate

	paidEvent     *catalog.Event
	paidTeamEvent *catalog.Event
	freeEvent     *catalog.Event
	user          id.UserID
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.ctx = context.Background()
	s.registrar = mocks.NewMockRegistrar(gomock.NewController(s.T()))
	s.orders = paystore.NewInMemoryOrders()
	s.teams = teamstore.NewInMemory()
	s.stub = gateway.NewStub("test-secret", "http://localhost/checkout/success")
	s.notifier = &recordingNotifier{}
	s.user = id.UserID(uuid.New())

	fee := &catalog.Money{AmountCents: 1200, Currency: "usd"}
	s.paidEvent = &catalog.Event{ID: id.EventID(uuid.New()), Title: "Gala", Fee: fee, RegistrationMode: catalog.ModeIndividual}
	s.paidTeamEvent = &catalog.Event{ID: id.EventID(uuid.New()), Title: "Robotics Cup", Fee: fee, RegistrationMode: catalog.ModeTeam}
	s.freeEvent = &catalog.Event{ID: id.EventID(uuid.New()), Title: "Meetup", RegistrationMode: catalog.ModeIndividual}

	s.gate = New(s.orders, catalog.NewInMemory(s.paidEvent, s.paidTeamEvent, s.freeEvent), s.registrar, s.stub,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNotifier(s.notifier),
		WithTeams(s.teams),
	)
}

func (s *GateSuite) startCheckout() *models.Order {
	s.registrar.EXPECT().IsRegistered(gomock.Any(), s.user, s.paidEvent.ID).Return(false, nil)
	order, err := s.gate.StartCheckout(s.ctx, CheckoutRequest{EventID: s.paidEvent.ID, Registrant: regmodels.Member(s.user)})
	s.Require().NoError(err)
	return order
}

func (s *GateSuite) callback(cb gateway.StubCallback) (*models.Order, error) {
	body, err := json.Marshal(cb)
	s.Require().NoError(err)
	headers := http.Header{}
	headers.Set(gateway.StubSignatureHeader, s.stub.Sign(body))
	return s.gate.HandleCallback(s.ctx, gateway.ProviderStub, body, headers)
}

func succeeded(order *models.Order, paymentID string) gateway.StubCallback {
	return gateway.StubCallback{
		Type:        gateway.StubPaymentSucceeded,
		OrderID:     order.ID.String(),
		PaymentID:   paymentID,
		AmountCents: order.Amount.AmountCents,
		Currency:    order.Amount.Currency,
	}
}

func (s *GateSuite) TestStartCheckoutCreatesOrderWithoutRegistration() {
	order := s.startCheckout()

	s.Equal(models.StateOrderCreated, order.State)
	s.Equal("stub_"+order.ID.String(), order.ProviderRef)
	s.Contains(order.CheckoutURL, order.ID.String())
	s.Nil(order.RegistrationID)
	s.Equal(int64(1200), order.Amount.AmountCents)

	n := s.notifier.last()
	s.Equal(notify.KindPaymentRequired, n.Kind)
	s.Require().NotNil(n.OrderID)
	s.Equal(order.ID, *n.OrderID)
}

type unavailableGateway struct {
	created []*models.Order
}

func (g *unavailableGateway) Name() string { return gateway.ProviderStub }

func (g *unavailableGateway) CreateOrder(_ context.Context, order *models.Order) (models.CheckoutSession, error) {
	g.created = append(g.created, order)
	return models.CheckoutSession{}, errors.New("connection reset by peer")
}

func (g *unavailableGateway) ParseCallback([]byte, http.Header) (models.CallbackEvent, error) {
	return models.CallbackEvent{}, errors.New("not implemented")
}

func (s *GateSuite) TestGatewayFailureClosesTheOrder() {
	gw := &unavailableGateway{}
	gate := New(s.orders, catalog.NewInMemory(s.paidEvent), s.registrar, gw,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithNotifier(s.notifier),
	)
	s.registrar.EXPECT().IsRegistered(gomock.Any(), s.user, s.paidEvent.ID).Return(false, nil)

	order, err := gate.StartCheckout(s.ctx, CheckoutRequest{EventID: s.paidEvent.ID, Registrant: regmodels.Member(s.user)})
	s.Nil(order)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Empty(s.notifier.sent, "no checkout link is sent")

	s.Require().Len(gw.created, 1)
	stored, err := s.orders.FindByID(s.ctx, gw.created[0].ID)
	s.Require().NoError(err)
	s.Equal(models.StatePaymentFailed, stored.State)
	s.Equal(ReasonGatewayUnavailable, stored.FailureReason)

	// A late callback for the abandoned order changes nothing.
	body, err := json.Marshal(succeeded(stored, "pay_late"))
	s.Require().NoError(err)
	headers := http.Header{}
	headers.Set(gateway.StubSignatureHeader, s.stub.Sign(body))
	late, err := s.gate.HandleCallback(s.ctx, gateway.ProviderStub, body, headers)
	s.Require().NoError(err)
	s.Equal(models.StatePaymentFailed, late.State)
}

func (s *GateSuite) TestStartCheckoutRejections() {
	s.Run("free event", func() {
		_, err := s.gate.StartCheckout(s.ctx, CheckoutRequest{EventID: s.freeEvent.ID, Registrant: regmodels.Member(s.user)})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("already registered", func() {
		s.registrar.EXPECT().IsRegistered(gomock.Any(), s.user, s.paidEvent.ID).Return(true, nil)
		_, err := s.gate.StartCheckout(s.ctx, CheckoutRequest{EventID: s.paidEvent.ID, Registrant: regmodels.Member(s.user)})
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))
	})

	s.Run("team event without a team", func() {
		_, err := s.gate.StartCheckout(s.ctx, CheckoutRequest{EventID: s.paidTeamEvent.ID, Registrant: regmodels.Member(s.user)})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("team event for someone off the roster", func() {
		team, err := teammodels.NewTeam(id.TeamID(uuid.New()), s.paidTeamEvent.ID, "Bots",
			teammodels.Member{UserID: id.UserID(uuid.New())}, time.Now())
		s.Require().NoError(err)
		s.Require().NoError(s.teams.CreateIfNameAvailable(s.ctx, team))

		_, err = s.gate.StartCheckout(s.ctx, CheckoutRequest{
			EventID:    s.paidTeamEvent.ID,
			Registrant: regmodels.Member(s.user),
			TeamID:     &team.ID,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotTeamMember))
	})

	s.Run("unknown event", func() {
		_, err := s.gate.StartCheckout(s.ctx, CheckoutRequest{EventID: id.EventID(uuid.New()), Registrant: regmodels.Member(s.user)})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *GateSuite) TestSuccessCallbackRegistersOnce() {
	order := s.startCheckout()
	regID := id.RegistrationID(uuid.New())
	s.registrar.EXPECT().RegisterPaid(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, o *models.Order) (id.RegistrationID, error) {
			s.Equal(id.PaymentID("pay_1"), o.PaymentID)
			return regID, nil
		}).Times(1)

	got, err := s.callback(succeeded(order, "pay_1"))
	s.Require().NoError(err)
	s.Equal(models.StatePaymentSucceeded, got.State)
	s.Require().NotNil(got.RegistrationID)
	s.Equal(regID, *got.RegistrationID)

	again, err := s.callback(succeeded(order, "pay_1"))
	s.Require().NoError(err, "gateways redeliver callbacks")
	s.Equal(models.StatePaymentSucceeded, again.State)
}

func (s *GateSuite) TestSecondPaidOrderIsFlaggedForRefund() {
	first := s.startCheckout()
	second := s.startCheckout()
	regID := id.RegistrationID(uuid.New())
	gomock.InOrder(
		s.registrar.EXPECT().RegisterPaid(gomock.Any(), gomock.Any()).Return(regID, nil),
		s.registrar.EXPECT().RegisterPaid(gomock.Any(), gomock.Any()).
			Return(regID, dErrors.New(dErrors.CodeAlreadyRegistered, "already registered for this event")),
	)

	got, err := s.callback(succeeded(first, "pay_1"))
	s.Require().NoError(err)
	s.False(got.RefundRequired())

	dup, err := s.callback(succeeded(second, "pay_2"))
	s.Require().NoError(err)
	s.Equal(models.StatePaymentSucceeded, dup.State)
	s.Equal(id.PaymentID("pay_2"), dup.PaymentID)
	s.Require().NotNil(dup.RegistrationID)
	s.Equal(regID, *dup.RegistrationID)
	s.True(dup.RefundRequired())
	s.Equal(models.ReasonDuplicatePayment, dup.FailureReason)
	s.False(dup.NeedsRegistration())

	n := s.notifier.last()
	s.Equal(notify.KindRefundRequired, n.Kind)
	s.Require().NotNil(n.OrderID)
	s.Equal(second.ID, *n.OrderID)

	stored, err := s.orders.FindByID(s.ctx, second.ID)
	s.Require().NoError(err)
	s.True(stored.RefundRequired())
}

func (s *GateSuite) TestTerminalStatesAreNeverOverwritten() {
	order := s.startCheckout()

	failed, err := s.callback(gateway.StubCallback{Type: gateway.StubPaymentFailed, OrderID: order.ID.String(), Reason: "card declined"})
	s.Require().NoError(err)
	s.Equal(models.StatePaymentFailed, failed.State)
	s.Equal("card declined", failed.FailureReason)
	s.Equal(notify.KindPaymentFailed, s.notifier.last().Kind)

	late, err := s.callback(succeeded(order, "pay_late"))
	s.Require().NoError(err)
	s.Equal(models.StatePaymentFailed, late.State)
	s.True(late.PaymentID.IsNil())
}

func (s *GateSuite) TestUnderpaymentFailsTheOrder() {
	order := s.startCheckout()
	cb := succeeded(order, "pay_low")
	cb.AmountCents = 100

	got, err := s.callback(cb)
	s.Require().NoError(err)
	s.Equal(models.StatePaymentFailed, got.State)
}

func (s *GateSuite) TestRegistrarFailureIsRetryable() {
	order := s.startCheckout()
	regID := id.RegistrationID(uuid.New())
	gomock.InOrder(
		s.registrar.EXPECT().RegisterPaid(gomock.Any(), gomock.Any()).
			Return(id.RegistrationID{}, dErrors.New(dErrors.CodeMembershipWriteFailed, "membership write failed")),
		s.registrar.EXPECT().RegisterPaid(gomock.Any(), gomock.Any()).Return(regID, nil),
	)

	got, err := s.callback(succeeded(order, "pay_2"))
	s.Require().NoError(err)
	s.Equal(models.StatePaymentSucceeded, got.State)
	s.True(got.NeedsRegistration())

	retried, err := s.gate.RetryRegistration(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Require().NotNil(retried.RegistrationID)
	s.Equal(regID, *retried.RegistrationID)

	again, err := s.gate.RetryRegistration(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(regID, *again.RegistrationID)
}

func (s *GateSuite) TestRetryRequiresPayment() {
	order := s.startCheckout()
	_, err := s.gate.RetryRegistration(s.ctx, order.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *GateSuite) TestCancelOrder() {
	order := s.startCheckout()

	_, err := s.gate.CancelOrder(s.ctx, order.ID, id.UserID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "orders are private to their owner")

	cancelled, err := s.gate.CancelOrder(s.ctx, order.ID, s.user)
	s.Require().NoError(err)
	s.Equal(models.StatePaymentCancelled, cancelled.State)

	again, err := s.gate.CancelOrder(s.ctx, order.ID, s.user)
	s.Require().NoError(err)
	s.Equal(models.StatePaymentCancelled, again.State)

	late, err := s.callback(succeeded(order, "pay_3"))
	s.Require().NoError(err)
	s.Equal(models.StatePaymentCancelled, late.State)
}

func (s *GateSuite) TestCancelAfterPaymentConflicts() {
	order := s.startCheckout()
	s.registrar.EXPECT().RegisterPaid(gomock.Any(), gomock.Any()).Return(id.RegistrationID(uuid.New()), nil)
	_, err := s.callback(succeeded(order, "pay_4"))
	s.Require().NoError(err)

	_, err = s.gate.CancelOrder(s.ctx, order.ID, s.user)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *GateSuite) TestCallbackRejections() {
	order := s.startCheckout()

	s.Run("bad signature", func() {
		body, _ := json.Marshal(succeeded(order, "pay_5"))
		headers := http.Header{}
		headers.Set(gateway.StubSignatureHeader, "00ff")
		_, err := s.gate.HandleCallback(s.ctx, gateway.ProviderStub, body, headers)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown provider", func() {
		_, err := s.gate.HandleCallback(s.ctx, "paypal", []byte(`{}`), http.Header{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown order", func() {
		_, err := s.callback(gateway.StubCallback{Type: gateway.StubPaymentFailed, OrderID: uuid.NewString()})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("ignored event types", func() {
		got, err := s.callback(gateway.StubCallback{Type: "payment.refunded", OrderID: order.ID.String()})
		s.NoError(err)
		s.Nil(got)
	})
}

func (s *GateSuite) TestVerifier() {
	order := s.startCheckout()
	verifier := NewVerifier(s.orders)

	_, err := verifier.VerifyPayment(s.ctx, "pay_6", s.user, s.paidEvent.ID)
	s.True(dErrors.HasCode(err, dErrors.CodePaymentVerificationFailed), "unknown payment")

	s.registrar.EXPECT().RegisterPaid(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, o *models.Order) (id.RegistrationID, error) {
			paid, err := verifier.VerifyPayment(ctx, o.PaymentID, o.UserID, o.EventID)
			s.Require().NoError(err)
			s.Equal(o.Amount, paid)
			return id.RegistrationID(uuid.New()), nil
		})
	_, err = s.callback(succeeded(order, "pay_6"))
	s.Require().NoError(err)

	_, err = verifier.VerifyPayment(s.ctx, "pay_6", id.UserID(uuid.New()), s.paidEvent.ID)
	s.True(dErrors.HasCode(err, dErrors.CodePaymentVerificationFailed), "another user")
	_, err = verifier.VerifyPayment(s.ctx, "pay_6", s.user, s.freeEvent.ID)
	s.True(dErrors.HasCode(err, dErrors.CodePaymentVerificationFailed), "another event")
}

func TestTranslate(t *testing.T) {
	coded := dErrors.New(dErrors.CodeTeamFull, "full")
	assert.Equal(t, coded, translate(coded, dErrors.CodeNotFound, "x"))
	assert.Equal(t, dErrors.CodeInternal, dErrors.CodeOf(translate(errors.New("boom"), dErrors.CodeNotFound, "x")))
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(translate(fmt.Errorf("dup: %w", sentinel.ErrAlreadyUsed), dErrors.CodeNotFound, "x")))
}
