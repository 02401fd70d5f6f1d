// Package gateway adapts external payment providers to the payment gate.
//
// An adapter creates hosted checkout orders and turns signed provider
// callbacks into provider-neutral models.CallbackEvent values.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"campusreg/internal/payment/models"
	"campusreg/internal/platform/config"
)

// Provider names accepted by PAYMENT_PROVIDER and the webhook route.
const (
	ProviderStub   = "stub"
	ProviderStripe = "stripe"
)

var (
	// ErrInvalidSignature is returned when a callback fails signature checks.
	ErrInvalidSignature = errors.New("invalid callback signature")
	// ErrMalformedCallback is returned for signed payloads that cannot be decoded.
	ErrMalformedCallback = errors.New("malformed callback payload")
)

// Gateway is one payment provider.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, order *models.Order) (models.CheckoutSession, error)
	ParseCallback(payload []byte, headers http.Header) (models.CallbackEvent, error)
}

// New returns the adapter selected by cfg.Provider.
func New(cfg config.PaymentConfig) (Gateway, error) {
	switch cfg.Provider {
	case ProviderStub, "":
		return NewStub(cfg.StubSecret, cfg.SuccessURL), nil
	case ProviderStripe:
		if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
			return nil, errors.New("stripe provider requires STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET")
		}
		return NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.SuccessURL, cfg.CancelURL), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}
