package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"campusreg/internal/notify"
	"campusreg/internal/registration/models"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/requestcontext"
)

// Cancel marks a confirmed registration cancelled, removes the membership and,
// for team registrations, the roster entry. Cancelling an already cancelled
// registration returns it unchanged.
func (s *Service) Cancel(ctx context.Context, regID id.RegistrationID) (reg *models.Registration, err error) {
	ctx, span := s.tracer.Start(ctx, "registration.Cancel")
	span.SetAttributes(attribute.String("registration_id", regID.String()))
	defer func() { endSpan(span, err) }()

	if regID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "registration ID is required")
	}
	current, err := s.reads.Registrations.FindByID(ctx, regID)
	if err != nil {
		return nil, wrapStoreErr(err, dErrors.CodeNotFound, "registration not found")
	}
	if current.IsCancelled() {
		return current, nil
	}

	now := requestcontext.Now(ctx)
	changed := false
	err = s.tx.RunInTx(ctx, current.EventID, func(ctx context.Context, st Stores) error {
		r, err := st.Registrations.FindByID(ctx, regID)
		if err != nil {
			return err
		}
		if r.IsCancelled() {
			reg = r
			return nil
		}
		if err := r.CanCancel(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeConflict, "only confirmed registrations can be cancelled")
		}

		// Membership goes first: if it fails nothing has changed yet.
		if err := st.Memberships.RemoveMembership(ctx, r.UserID, r.EventID); err != nil {
			return &membershipError{err: err}
		}
		r.ApplyCancellation(now)
		if err := st.Registrations.Update(ctx, r); err != nil {
			if restoreErr := st.Memberships.AddMembership(ctx, r.UserID, r.EventID); restoreErr != nil {
				return errors.Join(err, &membershipError{err: restoreErr})
			}
			return err
		}
		if r.TeamID != nil {
			if err := st.Teams.RemoveMember(ctx, *r.TeamID, r.UserID); err != nil {
				return err
			}
			// An empty team releases its name.
			deleted, err := st.Teams.DeleteIfEmpty(ctx, *r.TeamID)
			if err != nil {
				return err
			}
			if deleted {
				s.logger.InfoContext(ctx, "empty team removed",
					"team_id", r.TeamID.String(),
					"event_id", r.EventID.String(),
				)
			}
		}
		reg, changed = r, true
		return nil
	})
	if err != nil {
		var me *membershipError
		if errors.As(err, &me) {
			s.incrementMembershipFailure()
		}
		s.logger.ErrorContext(ctx, "cancellation failed",
			"registration_id", regID.String(),
			"error", err,
		)
		return nil, wrapStoreErr(err, dErrors.CodeNotFound, "failed to cancel registration")
	}

	if changed {
		if s.metrics != nil {
			s.metrics.IncrementCancelled()
		}
		s.logger.InfoContext(ctx, "registration cancelled",
			"registration_id", reg.ID.String(),
			"event_id", reg.EventID.String(),
			"user_id", reg.UserID.String(),
		)
		s.notifier.Notify(ctx, notify.Notification{
			Kind:           notify.KindRegistrationCancelled,
			UserID:         reg.UserID,
			EventID:        reg.EventID,
			RegistrationID: &reg.ID,
			TeamID:         reg.TeamID,
			At:             now,
		})
		s.publish(ctx, reg.UserID, reg.EventID)
	}
	return reg, nil
}
