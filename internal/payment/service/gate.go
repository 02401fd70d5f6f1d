package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"campusreg/internal/notify"
	"campusreg/internal/payment/gateway"
	"campusreg/internal/payment/models"
	regmodels "campusreg/internal/registration/models"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/sentinel"
	"campusreg/pkg/requestcontext"
)

// CheckoutRequest starts payment for one registrant. TeamID is required for
// team events.
type CheckoutRequest struct {
	EventID    id.EventID
	Registrant regmodels.Registrant
	TeamID     *id.TeamID
	Metadata   regmodels.Metadata
}

// StartCheckout creates a gateway order for the event fee. No registration is
// created until the gateway reports success.
func (g *Gate) StartCheckout(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	if err := req.Registrant.Validate(); err != nil {
		return nil, err
	}
	userID := req.Registrant.EffectiveUserID()

	event, err := g.catalog.FindEvent(ctx, req.EventID)
	if err != nil {
		return nil, translate(err, dErrors.CodeNotFound, "event not found")
	}
	if !event.HasFee() {
		return nil, dErrors.New(dErrors.CodeValidation, "event has no registration fee")
	}
	if event.IsTeamEvent() != (req.TeamID != nil) {
		return nil, dErrors.New(dErrors.CodeValidation, "team is required exactly for team events")
	}
	if req.TeamID != nil && g.teams != nil {
		team, err := g.teams.FindByID(ctx, event.ID, *req.TeamID)
		if err != nil {
			return nil, translate(err, dErrors.CodeTeamNotFound, "team not found")
		}
		if !team.HasMember(userID) {
			return nil, dErrors.New(dErrors.CodeNotTeamMember, "user is not on the team roster")
		}
	}
	registered, err := g.registrar.IsRegistered(ctx, userID, event.ID)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, dErrors.New(dErrors.CodeAlreadyRegistered, "already registered for this event")
	}

	now := requestcontext.Now(ctx)
	gw := g.gateways[g.primary]
	order := models.NewOrder(id.OrderID(uuid.New()), event.ID, req.Registrant, req.TeamID, req.Metadata, *event.Fee, gw.Name(), now)
	if err := g.orders.Create(ctx, order); err != nil {
		return nil, translate(err, dErrors.CodeNotFound, "failed to create order")
	}

	session, err := gw.CreateOrder(ctx, order)
	if err != nil {
		g.logger.ErrorContext(ctx, "gateway order creation failed",
			"order_id", order.ID.String(),
			"provider", gw.Name(),
			"error", err,
		)
		g.abandonOrder(ctx, order.ID, now)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "payment provider unavailable")
	}
	order, err = g.orders.Execute(ctx, order.ID, func(o *models.Order) error {
		return o.MarkCreated(session.ProviderRef, session.CheckoutURL, now)
	})
	if err != nil {
		return nil, translate(err, dErrors.CodeNotFound, "failed to record order")
	}

	if g.metrics != nil {
		g.metrics.IncrementCheckout(gw.Name())
	}
	g.logger.InfoContext(ctx, "checkout started",
		"order_id", order.ID.String(),
		"event_id", order.EventID.String(),
		"user_id", order.UserID.String(),
		"provider", order.Provider,
		"request_id", requestcontext.RequestID(ctx),
	)
	orderID := order.ID
	g.notifier.Notify(ctx, notify.Notification{
		Kind:        notify.KindPaymentRequired,
		UserID:      order.UserID,
		EventID:     order.EventID,
		TeamID:      order.TeamID,
		OrderID:     &orderID,
		CheckoutURL: order.CheckoutURL,
		At:          now,
	})
	return order, nil
}

// ReasonGatewayUnavailable is recorded on orders the gateway never created.
const ReasonGatewayUnavailable = "payment provider unavailable"

// abandonOrder settles an order the gateway refused so it does not linger in
// NotStarted.
func (g *Gate) abandonOrder(ctx context.Context, orderID id.OrderID, now time.Time) {
	ctx = context.WithoutCancel(ctx)
	_, err := g.orders.Execute(ctx, orderID, func(o *models.Order) error {
		return o.Fail(ReasonGatewayUnavailable, now)
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to close abandoned order",
			"order_id", orderID.String(),
			"error", err,
		)
	}
}

// HandleCallback verifies and applies a gateway notification. Only an order in
// OrderCreated moves; callbacks for settled orders are acknowledged without
// effect. It returns nil, nil for notifications the gate does not act on.
func (g *Gate) HandleCallback(ctx context.Context, provider string, payload []byte, headers http.Header) (*models.Order, error) {
	gw, ok := g.gateways[provider]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown payment provider")
	}
	ev, err := gw.ParseCallback(payload, headers)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			g.logger.WarnContext(ctx, "payment callback rejected", "provider", provider, "error", err)
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid callback signature")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed callback")
	}
	if g.metrics != nil {
		g.metrics.IncrementCallback(provider, string(ev.Outcome))
	}
	if ev.Outcome == models.OutcomeIgnored {
		return nil, nil
	}

	order, err := g.findCallbackOrder(ctx, provider, ev)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var moved bool
	order, err = g.orders.Execute(ctx, order.ID, func(o *models.Order) error {
		if o.State.IsTerminal() {
			return nil
		}
		moved = true
		switch ev.Outcome {
		case models.OutcomeSucceeded:
			if ev.Amount != nil && !ev.Amount.Covers(o.Amount) {
				return o.Fail("paid amount does not cover the registration fee", now)
			}
			return o.Succeed(ev.PaymentID, now)
		case models.OutcomeFailed:
			return o.Fail(ev.FailureReason, now)
		default:
			return o.Cancel(now)
		}
	})
	if err != nil {
		return nil, translate(err, dErrors.CodeNotFound, "failed to update order")
	}
	if !moved {
		g.logger.InfoContext(ctx, "callback for settled order ignored",
			"order_id", order.ID.String(),
			"state", string(order.State),
			"outcome", string(ev.Outcome),
		)
		return order, nil
	}

	g.logger.InfoContext(ctx, "order settled",
		"order_id", order.ID.String(),
		"state", string(order.State),
		"payment_id", order.PaymentID.String(),
	)
	switch order.State {
	case models.StatePaymentSucceeded:
		// A registrar failure leaves the order for RetryRegistration.
		if updated, err := g.completeRegistration(ctx, order); err == nil {
			order = updated
		}
	case models.StatePaymentFailed:
		orderID := order.ID
		g.notifier.Notify(ctx, notify.Notification{
			Kind:    notify.KindPaymentFailed,
			UserID:  order.UserID,
			EventID: order.EventID,
			TeamID:  order.TeamID,
			OrderID: &orderID,
			At:      now,
		})
	}
	return order, nil
}

func (g *Gate) findCallbackOrder(ctx context.Context, provider string, ev models.CallbackEvent) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	if !ev.OrderID.IsNil() {
		order, err = g.orders.FindByID(ctx, ev.OrderID)
	} else {
		order, err = g.orders.FindByProviderRef(ctx, provider, ev.ProviderRef)
	}
	if err != nil {
		return nil, translate(err, dErrors.CodeNotFound, "order not found")
	}
	if order.Provider != provider {
		return nil, dErrors.New(dErrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// CancelOrder abandons a checkout the user has not paid. Cancelling an
// already cancelled order is a no-op.
func (g *Gate) CancelOrder(ctx context.Context, orderID id.OrderID, userID id.UserID) (*models.Order, error) {
	if _, err := g.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	order, err := g.orders.Execute(ctx, orderID, func(o *models.Order) error {
		switch o.State {
		case models.StatePaymentCancelled:
			return nil
		case models.StateOrderCreated:
			return o.Cancel(now)
		default:
			return dErrors.New(dErrors.CodeConflict, "order is not awaiting payment")
		}
	})
	if err != nil {
		return nil, translate(err, dErrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// RetryRegistration finishes a succeeded order whose registration could not be
// created when the callback arrived.
func (g *Gate) RetryRegistration(ctx context.Context, orderID id.OrderID) (*models.Order, error) {
	order, err := g.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, translate(err, dErrors.CodeNotFound, "order not found")
	}
	if order.RegistrationID != nil {
		return order, nil
	}
	if order.State != models.StatePaymentSucceeded {
		return nil, dErrors.New(dErrors.CodeConflict, "order has not been paid")
	}
	return g.completeRegistration(ctx, order)
}

// GetOrder returns an order owned by userID.
func (g *Gate) GetOrder(ctx context.Context, orderID id.OrderID, userID id.UserID) (*models.Order, error) {
	order, err := g.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, translate(err, dErrors.CodeNotFound, "order not found")
	}
	if order.UserID != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (g *Gate) completeRegistration(ctx context.Context, order *models.Order) (*models.Order, error) {
	regID, err := g.registrar.RegisterPaid(ctx, order)
	duplicate := dErrors.HasCode(err, dErrors.CodeAlreadyRegistered) && !regID.IsNil()
	if err != nil && !duplicate {
		if g.metrics != nil {
			g.metrics.IncrementRegistrarFailure()
		}
		g.logger.ErrorContext(ctx, "paid registration failed",
			"order_id", order.ID.String(),
			"payment_id", order.PaymentID.String(),
			"error", err,
		)
		return nil, err
	}
	now := requestcontext.Now(ctx)
	updated, err := g.orders.Execute(ctx, order.ID, func(o *models.Order) error {
		if duplicate {
			o.FlagDuplicatePayment(regID, now)
			return nil
		}
		o.AttachRegistration(regID, now)
		return nil
	})
	if err != nil {
		return nil, translate(err, dErrors.CodeNotFound, "failed to link registration")
	}
	if duplicate {
		if g.metrics != nil {
			g.metrics.IncrementDuplicatePayment()
		}
		g.logger.WarnContext(ctx, "payment captured for an existing registration",
			"order_id", updated.ID.String(),
			"payment_id", updated.PaymentID.String(),
			"registration_id", regID.String(),
		)
		orderID := updated.ID
		g.notifier.Notify(ctx, notify.Notification{
			Kind:           notify.KindRefundRequired,
			UserID:         updated.UserID,
			EventID:        updated.EventID,
			TeamID:         updated.TeamID,
			OrderID:        &orderID,
			RegistrationID: &regID,
			At:             now,
		})
	}
	return updated, nil
}

func translate(err error, notFound dErrors.Code, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, notFound, msg)
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
