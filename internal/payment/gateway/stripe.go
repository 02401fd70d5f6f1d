package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/webhook"

	"campusreg/internal/catalog"
	"campusreg/internal/payment/models"
	id "campusreg/pkg/domain"
)

const stripeSignatureHeader = "Stripe-Signature"

// Stripe creates hosted checkout sessions and verifies Stripe webhooks.
// The order id travels as the session's client reference.
type Stripe struct {
	webhookSecret string
	successURL    string
	cancelURL     string
	newSession    func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripe(secretKey, webhookSecret, successURL, cancelURL string) *Stripe {
	stripe.Key = secretKey
	return &Stripe{
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
		newSession:    session.New,
	}
}

func (s *Stripe) Name() string { return ProviderStripe }

func (s *Stripe) CreateOrder(ctx context.Context, order *models.Order) (models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		ClientReferenceID: stripe.String(order.ID.String()),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL + "?order_id=" + order.ID.String()),
		CancelURL:         stripe.String(s.cancelURL + "?order_id=" + order.ID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(order.Amount.Currency)),
				UnitAmount: stripe.Int64(order.Amount.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Event registration " + order.EventID.String()),
				},
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("event_id", order.EventID.String())
	params.AddMetadata("user_id", order.UserID.String())

	cs, err := s.newSession(params)
	if err != nil {
		return models.CheckoutSession{}, fmt.Errorf("create stripe checkout session: %w", err)
	}
	return models.CheckoutSession{ProviderRef: cs.ID, CheckoutURL: cs.URL}, nil
}

func (s *Stripe) ParseCallback(payload []byte, headers http.Header) (models.CallbackEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, headers.Get(stripeSignatureHeader), s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return models.CallbackEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var outcome models.CallbackOutcome
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		outcome = models.OutcomeSucceeded
	case "checkout.session.async_payment_failed":
		outcome = models.OutcomeFailed
	case "checkout.session.expired":
		outcome = models.OutcomeCancelled
	default:
		return models.CallbackEvent{Outcome: models.OutcomeIgnored}, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return models.CallbackEvent{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	// Delayed payment methods complete the session before the money moves.
	if outcome == models.OutcomeSucceeded && cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return models.CallbackEvent{Outcome: models.OutcomeIgnored}, nil
	}

	orderID, err := id.ParseOrderID(cs.ClientReferenceID)
	if err != nil {
		return models.CallbackEvent{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	ev := models.CallbackEvent{
		Outcome:     outcome,
		OrderID:     orderID,
		ProviderRef: cs.ID,
	}
	if cs.PaymentIntent != nil {
		ev.PaymentID = id.PaymentID(cs.PaymentIntent.ID)
	}
	if outcome == models.OutcomeSucceeded {
		ev.Amount = &catalog.Money{AmountCents: cs.AmountTotal, Currency: string(cs.Currency)}
	}
	if outcome == models.OutcomeFailed {
		ev.FailureReason = "asynchronous payment failed"
	}
	return ev, nil
}
