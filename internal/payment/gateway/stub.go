package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"campusreg/internal/catalog"
	"campusreg/internal/payment/models"
	id "campusreg/pkg/domain"
)

// StubSignatureHeader carries the hex HMAC-SHA256 of the raw callback body.
const StubSignatureHeader = "X-Signature"

// Stub callback types.
const (
	StubPaymentSucceeded = "payment.succeeded"
	StubPaymentFailed    = "payment.failed"
	StubPaymentCancelled = "payment.cancelled"
)

// StubCallback is the JSON body the stub provider posts to the webhook.
type StubCallback struct {
	Type        string `json:"type"`
	OrderID     string `json:"order_id"`
	Reference   string `json:"reference,omitempty"`
	PaymentID   string `json:"payment_id,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Stub is a local provider: checkout URLs point back at the service and
// callbacks are JSON signed with a shared secret.
type Stub struct {
	secret     []byte
	successURL string
}

func NewStub(secret, successURL string) *Stub {
	return &Stub{secret: []byte(secret), successURL: successURL}
}

func (s *Stub) Name() string { return ProviderStub }

func (s *Stub) CreateOrder(_ context.Context, order *models.Order) (models.CheckoutSession, error) {
	ref := "stub_" + order.ID.String()
	checkout := s.successURL
	if u, err := url.Parse(s.successURL); err == nil {
		q := u.Query()
		q.Set("order_id", order.ID.String())
		u.RawQuery = q.Encode()
		checkout = u.String()
	}
	return models.CheckoutSession{ProviderRef: ref, CheckoutURL: checkout}, nil
}

// Sign returns the signature header value for payload.
func (s *Stub) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Stub) ParseCallback(payload []byte, headers http.Header) (models.CallbackEvent, error) {
	got, err := hex.DecodeString(headers.Get(StubSignatureHeader))
	if err != nil || len(got) == 0 {
		return models.CallbackEvent{}, ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return models.CallbackEvent{}, ErrInvalidSignature
	}

	var cb StubCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return models.CallbackEvent{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	orderID, err := id.ParseOrderID(cb.OrderID)
	if err != nil {
		return models.CallbackEvent{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	ev := models.CallbackEvent{
		OrderID:       orderID,
		ProviderRef:   cb.Reference,
		PaymentID:     id.PaymentID(cb.PaymentID),
		FailureReason: cb.Reason,
	}
	switch cb.Type {
	case StubPaymentSucceeded:
		ev.Outcome = models.OutcomeSucceeded
		if cb.Currency != "" {
			ev.Amount = &catalog.Money{AmountCents: cb.AmountCents, Currency: cb.Currency}
		}
	case StubPaymentFailed:
		ev.Outcome = models.OutcomeFailed
	case StubPaymentCancelled:
		ev.Outcome = models.OutcomeCancelled
	default:
		ev.Outcome = models.OutcomeIgnored
	}
	return ev, nil
}
