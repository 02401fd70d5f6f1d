package service

import (
	"context"
	"errors"

	"campusreg/internal/registration/models"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/sentinel"
)

// IsRegistered answers from the authoritative record store, not from any cache.
func (s *Service) IsRegistered(ctx context.Context, userID id.UserID, eventID id.EventID) (bool, error) {
	if userID.IsNil() || eventID.IsNil() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "user and event are required")
	}
	_, err := s.reads.Registrations.FindConfirmed(ctx, eventID, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return false, nil
	default:
		return false, wrapStoreErr(err, dErrors.CodeNotFound, "failed to check registration")
	}
}

func (s *Service) GetRegistration(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	reg, err := s.reads.Registrations.FindByID(ctx, regID)
	if err != nil {
		return nil, wrapStoreErr(err, dErrors.CodeNotFound, "registration not found")
	}
	return reg, nil
}

// ListEventRegistrations returns every record for the event, oldest first,
// including cancelled and failed ones.
func (s *Service) ListEventRegistrations(ctx context.Context, eventID id.EventID) ([]*models.Registration, error) {
	if _, err := s.findEvent(ctx, eventID); err != nil {
		return nil, err
	}
	regs, err := s.reads.Registrations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, wrapStoreErr(err, dErrors.CodeNotFound, "failed to list registrations")
	}
	return regs, nil
}
