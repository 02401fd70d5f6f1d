package service

import (
	"context"
	"errors"

	"campusreg/internal/catalog"
	"campusreg/internal/payment/models"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/sentinel"
)

// Verifier confirms payments against settled orders. A payment is valid for
// exactly the user and event its order was created for.
type Verifier struct {
	orders OrderStore
}

func NewVerifier(orders OrderStore) *Verifier {
	return &Verifier{orders: orders}
}

func (v *Verifier) VerifyPayment(ctx context.Context, paymentID id.PaymentID, userID id.UserID, eventID id.EventID) (catalog.Money, error) {
	order, err := v.orders.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return catalog.Money{}, dErrors.New(dErrors.CodePaymentVerificationFailed, "payment not found")
		}
		return catalog.Money{}, err
	}
	if order.State != models.StatePaymentSucceeded {
		return catalog.Money{}, dErrors.New(dErrors.CodePaymentVerificationFailed, "payment has not succeeded")
	}
	if order.UserID != userID || order.EventID != eventID {
		return catalog.Money{}, dErrors.New(dErrors.CodePaymentVerificationFailed, "payment was made for another registration")
	}
	return order.Amount, nil
}
