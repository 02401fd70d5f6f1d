package adapters

import (
	"context"

	"campusreg/internal/payment/models"
	regmodels "campusreg/internal/registration/models"
	regservice "campusreg/internal/registration/service"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
)

// Registrations is the slice of the registration orchestrator the gate uses.
type Registrations interface {
	RegisterForPaidEvent(ctx context.Context, cmd regservice.PaidRegisterCommand) (*regmodels.Registration, error)
	IsRegistered(ctx context.Context, userID id.UserID, eventID id.EventID) (bool, error)
}

// RegistrarAdapter implements the payment gate's Registrar by calling the
// registration orchestrator in process.
type RegistrarAdapter struct {
	registrations Registrations
}

func NewRegistrarAdapter(registrations Registrations) *RegistrarAdapter {
	return &RegistrarAdapter{registrations: registrations}
}

// RegisterPaid creates the registration for a succeeded order. A replay of the
// payment that created the user's registration resolves to it. When another
// payment holds the registration it returns that registration's id together
// with the CodeAlreadyRegistered error.
func (a *RegistrarAdapter) RegisterPaid(ctx context.Context, order *models.Order) (id.RegistrationID, error) {
	reg, err := a.registrations.RegisterForPaidEvent(ctx, regservice.PaidRegisterCommand{
		EventID:    order.EventID,
		Registrant: order.Registrant,
		TeamID:     order.TeamID,
		PaymentID:  order.PaymentID,
		Metadata:   order.Metadata,
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAlreadyRegistered) && reg != nil {
			if reg.PaymentID == order.PaymentID {
				return reg.ID, nil
			}
			return reg.ID, err
		}
		return id.RegistrationID{}, err
	}
	return reg.ID, nil
}

func (a *RegistrarAdapter) IsRegistered(ctx context.Context, userID id.UserID, eventID id.EventID) (bool, error) {
	return a.registrations.IsRegistered(ctx, userID, eventID)
}
