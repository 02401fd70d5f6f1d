package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"campusreg/internal/catalog"
	"campusreg/internal/datasync"
	"campusreg/internal/notify"
	paymodels "campusreg/internal/payment/models"
	"campusreg/internal/registration/models"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/sentinel"
	"campusreg/pkg/requestcontext"
)

// RegisterCommand registers a member or a guest for an individual event.
type RegisterCommand struct {
	EventID    id.EventID
	Registrant models.Registrant
	Metadata   models.Metadata
}

// PaidRegisterCommand carries the gateway payment id confirming the fee.
// TeamID is set for team events.
type PaidRegisterCommand struct {
	EventID    id.EventID
	Registrant models.Registrant
	TeamID     *id.TeamID
	PaymentID  id.PaymentID
	Metadata   models.Metadata
}

const (
	kindIndividual = "individual"
	kindTeam       = "team"
	kindPaid       = "paid"
)

// attempt is one registration write, shared by every entry point.
type attempt struct {
	event      *catalog.Event
	registrant models.Registrant
	meta       models.Metadata
	teamID     *id.TeamID
	paymentID  id.PaymentID
	paid       catalog.Money
	kind       string
}

// RegisterIndividual registers a member or guest for a free individual event.
// A second call for the same person returns the existing record with an
// AlreadyRegistered error. Fee-bearing events fail with PaymentRequired.
func (s *Service) RegisterIndividual(ctx context.Context, cmd RegisterCommand) (reg *models.Registration, err error) {
	ctx, span := s.startSpan(ctx, "registration.RegisterIndividual", cmd.EventID, cmd.Registrant.EffectiveUserID())
	defer func() { endSpan(span, err) }()
	defer s.observeRegister(time.Now())

	if err := cmd.Registrant.Validate(); err != nil {
		return nil, err
	}
	event, err := s.findEvent(ctx, cmd.EventID)
	if err != nil {
		return nil, err
	}
	if event.IsTeamEvent() {
		return nil, dErrors.New(dErrors.CodeValidation, "event registers teams; join a team first")
	}
	if event.HasFee() {
		return s.paymentRequired(ctx, event, cmd.Registrant.EffectiveUserID(), nil)
	}
	return s.register(ctx, attempt{
		event:      event,
		registrant: cmd.Registrant,
		meta:       cmd.Metadata,
		kind:       kindIndividual,
	})
}

// RegisterForTeamEvent registers a rostered member of teamID.
func (s *Service) RegisterForTeamEvent(ctx context.Context, userID id.UserID, eventID id.EventID, teamID id.TeamID, meta models.Metadata) (reg *models.Registration, err error) {
	ctx, span := s.startSpan(ctx, "registration.RegisterForTeamEvent", eventID, userID)
	span.SetAttributes(attribute.String("team_id", teamID.String()))
	defer func() { endSpan(span, err) }()
	defer s.observeRegister(time.Now())

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user is required")
	}
	event, err := s.findEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsTeamEvent() {
		return nil, dErrors.New(dErrors.CodeValidation, "event does not register teams")
	}
	if event.HasFee() {
		// Check the roster before sending the user to pay.
		team, err := s.reads.Teams.FindByID(ctx, eventID, teamID)
		if err != nil {
			return nil, wrapStoreErr(err, dErrors.CodeTeamNotFound, "team not found")
		}
		if !team.HasMember(userID) {
			return nil, dErrors.New(dErrors.CodeNotTeamMember, "user is not on the team roster")
		}
		return s.paymentRequired(ctx, event, userID, &teamID)
	}
	return s.register(ctx, attempt{
		event:      event,
		registrant: models.Member(userID),
		meta:       meta,
		teamID:     &teamID,
		kind:       kindTeam,
	})
}

// RegisterForPaidEvent is called by the payment gate once the gateway reported
// success for PaymentID. The payment is re-verified here and a PaymentRecord is
// written in the same transaction as the registration.
func (s *Service) RegisterForPaidEvent(ctx context.Context, cmd PaidRegisterCommand) (reg *models.Registration, err error) {
	userID := cmd.Registrant.EffectiveUserID()
	ctx, span := s.startSpan(ctx, "registration.RegisterForPaidEvent", cmd.EventID, userID)
	span.SetAttributes(attribute.String("payment_id", cmd.PaymentID.String()))
	defer func() { endSpan(span, err) }()
	defer s.observeRegister(time.Now())

	if err := cmd.Registrant.Validate(); err != nil {
		return nil, err
	}
	if cmd.PaymentID.IsNil() {
		return nil, dErrors.New(dErrors.CodePaymentVerificationFailed, "payment id is required")
	}
	event, err := s.findEvent(ctx, cmd.EventID)
	if err != nil {
		return nil, err
	}
	if !event.HasFee() {
		return nil, dErrors.New(dErrors.CodeValidation, "event has no registration fee")
	}
	if event.IsTeamEvent() != (cmd.TeamID != nil) {
		return nil, dErrors.New(dErrors.CodeValidation, "team is required exactly for team events")
	}
	if s.verifier == nil {
		return nil, dErrors.New(dErrors.CodePaymentVerificationFailed, "payments are not configured")
	}
	paid, err := s.verifier.VerifyPayment(ctx, cmd.PaymentID, userID, event.ID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodePaymentVerificationFailed) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodePaymentVerificationFailed, "payment could not be verified")
	}
	if !paid.Covers(*event.Fee) {
		return nil, dErrors.New(dErrors.CodePaymentVerificationFailed, "payment does not cover the registration fee")
	}
	return s.register(ctx, attempt{
		event:      event,
		registrant: cmd.Registrant,
		meta:       cmd.Metadata,
		teamID:     cmd.TeamID,
		paymentID:  cmd.PaymentID,
		paid:       paid,
		kind:       kindPaid,
	})
}

// paymentRequired resolves duplicates first so a registered user is never sent
// to checkout again.
func (s *Service) paymentRequired(ctx context.Context, event *catalog.Event, userID id.UserID, teamID *id.TeamID) (*models.Registration, error) {
	existing, err := s.reads.Registrations.FindConfirmed(ctx, event.ID, userID)
	switch {
	case err == nil:
		s.incrementDuplicate()
		return existing, dErrors.New(dErrors.CodeAlreadyRegistered, "already registered for this event")
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, wrapStoreErr(err, dErrors.CodeNotFound, "failed to check registration")
	}
	s.notifier.Notify(ctx, notify.Notification{
		Kind:    notify.KindPaymentRequired,
		UserID:  userID,
		EventID: event.ID,
		TeamID:  teamID,
		At:      requestcontext.Now(ctx),
	})
	return nil, dErrors.New(dErrors.CodePaymentRequired, "registration fee must be paid")
}

func (s *Service) register(ctx context.Context, a attempt) (*models.Registration, error) {
	userID := a.registrant.EffectiveUserID()
	eventID := a.event.ID
	now := requestcontext.Now(ctx)

	var (
		result          *models.Registration
		duplicate       bool
		pending         *models.Registration
		membershipAdded bool
		extraPayment    bool
	)
	txStart := time.Now()
	err := s.tx.RunInTx(ctx, eventID, func(ctx context.Context, st Stores) error {
		existing, err := st.Registrations.FindConfirmed(ctx, eventID, userID)
		switch {
		case err == nil:
			result, duplicate = existing, true
			if a.paymentID.IsNil() || existing.PaymentID == a.paymentID {
				return nil
			}
			err := st.Payments.Create(ctx, &paymodels.PaymentRecord{
				PaymentID:      a.paymentID,
				RegistrationID: existing.ID,
				EventID:        eventID,
				ClubID:         a.event.ClubID,
				UserID:         userID,
				Amount:         a.paid,
				Duplicate:      true,
				CreatedAt:      now,
			})
			switch {
			case err == nil:
				extraPayment = true
			case !errors.Is(err, sentinel.ErrAlreadyUsed):
				return err
			}
			return nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return err
		}

		if a.teamID != nil {
			team, err := st.Teams.FindByID(ctx, eventID, *a.teamID)
			if err != nil {
				return wrapStoreErr(err, dErrors.CodeTeamNotFound, "team not found")
			}
			if !team.HasMember(userID) {
				return dErrors.New(dErrors.CodeNotTeamMember, "user is not on the team roster")
			}
		}

		rec, err := models.NewPending(id.RegistrationID(uuid.New()), eventID, a.event.ClubID, a.registrant, a.meta, now)
		if err != nil {
			return err
		}
		rec.TeamID = a.teamID
		if !a.paymentID.IsNil() {
			rec.PaymentStatus = models.PaymentStatusPending
		}
		if err := st.Registrations.Create(ctx, rec); err != nil {
			return err
		}
		pending = rec

		if err := st.Memberships.AddMembership(ctx, userID, eventID); err != nil {
			return &membershipError{err: err}
		}
		membershipAdded = true

		if !a.paymentID.IsNil() {
			rec.MarkPaid(a.paymentID)
			if err := st.Payments.Create(ctx, &paymodels.PaymentRecord{
				PaymentID:      a.paymentID,
				RegistrationID: rec.ID,
				EventID:        eventID,
				ClubID:         a.event.ClubID,
				UserID:         userID,
				Amount:         a.paid,
				CreatedAt:      now,
			}); err != nil {
				if errors.Is(err, sentinel.ErrAlreadyUsed) {
					return dErrors.Wrap(err, dErrors.CodePaymentVerificationFailed, "payment was already used")
				}
				return err
			}
		}

		if err := rec.Confirm(now); err != nil {
			return err
		}
		if err := st.Registrations.Update(ctx, rec); err != nil {
			return err
		}
		result = rec
		return nil
	})
	s.observeTransaction(txStart)

	if err != nil {
		var me *membershipError
		if errors.As(err, &me) {
			s.incrementMembershipFailure()
		}
		if pending != nil {
			s.compensate(ctx, pending, membershipAdded)
		}
		s.logger.ErrorContext(ctx, "registration aborted",
			"event_id", eventID.String(),
			"user_id", userID.String(),
			"error", err,
		)
		return nil, wrapStoreErr(err, dErrors.CodeNotFound, "registration failed")
	}
	if duplicate {
		s.incrementDuplicate()
		if extraPayment {
			s.logger.WarnContext(ctx, "duplicate payment recorded for refund",
				"registration_id", result.ID.String(),
				"payment_id", a.paymentID.String(),
				"event_id", eventID.String(),
				"user_id", userID.String(),
			)
		}
		return result, dErrors.New(dErrors.CodeAlreadyRegistered, "already registered for this event")
	}

	s.afterRegistered(ctx, result, a.kind)
	return result, nil
}

// compensate undoes whatever an aborted attempt left behind. With a
// transactional backend the pending record is already gone and this is a
// no-op. Membership is only removed when no confirmed record backs it, since
// another attempt may have succeeded in the meantime.
func (s *Service) compensate(ctx context.Context, pending *models.Registration, membershipAdded bool) {
	ctx = context.WithoutCancel(ctx)
	now := requestcontext.Now(ctx)
	err := s.tx.RunInTx(ctx, pending.EventID, func(ctx context.Context, st Stores) error {
		rec, err := st.Registrations.FindByID(ctx, pending.ID)
		switch {
		case err == nil && rec.Status == models.StatusPending:
			if err := rec.Fail(now); err != nil {
				return err
			}
			if err := st.Registrations.Update(ctx, rec); err != nil {
				return err
			}
			s.incrementCompensation()
		case err != nil && !errors.Is(err, sentinel.ErrNotFound):
			return err
		}

		if !membershipAdded {
			return nil
		}
		_, err = st.Registrations.FindConfirmed(ctx, pending.EventID, pending.UserID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return st.Memberships.RemoveMembership(ctx, pending.UserID, pending.EventID)
		}
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "registration compensation failed",
			"registration_id", pending.ID.String(),
			"event_id", pending.EventID.String(),
			"error", err,
		)
	}
}

func (s *Service) afterRegistered(ctx context.Context, reg *models.Registration, kind string) {
	if s.metrics != nil {
		s.metrics.IncrementConfirmed(kind)
	}
	s.logger.InfoContext(ctx, "registration confirmed",
		"registration_id", reg.ID.String(),
		"event_id", reg.EventID.String(),
		"user_id", reg.UserID.String(),
		"kind", kind,
		"request_id", requestcontext.RequestID(ctx),
	)
	regID := reg.ID
	s.notifier.Notify(ctx, notify.Notification{
		Kind:           notify.KindRegistrationSucceeded,
		UserID:         reg.UserID,
		EventID:        reg.EventID,
		RegistrationID: &regID,
		TeamID:         reg.TeamID,
		At:             reg.UpdatedAt,
	})
	s.publish(ctx, reg.UserID, reg.EventID)
}

func (s *Service) publish(ctx context.Context, userID id.UserID, eventID id.EventID) {
	if s.publisher != nil {
		s.publisher.Changed(context.WithoutCancel(ctx), datasync.RegistrationTopics(userID, eventID)...)
	}
}

func (s *Service) findEvent(ctx context.Context, eventID id.EventID) (*catalog.Event, error) {
	if eventID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event ID is required")
	}
	event, err := s.catalog.FindEvent(ctx, eventID)
	if err != nil {
		return nil, wrapStoreErr(err, dErrors.CodeNotFound, "event not found")
	}
	return event, nil
}

func (s *Service) startSpan(ctx context.Context, name string, eventID id.EventID, userID id.UserID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("event_id", eventID.String()),
		attribute.String("user_id", userID.String()),
	))
}

// endSpan records failures. AlreadyRegistered is success-equivalent and is
// not marked as an error.
func endSpan(span trace.Span, err error) {
	if err != nil && !dErrors.HasCode(err, dErrors.CodeAlreadyRegistered) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func (s *Service) observeRegister(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveRegister(start)
	}
}

func (s *Service) observeTransaction(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveTransaction(start)
	}
}

func (s *Service) incrementDuplicate() {
	if s.metrics != nil {
		s.metrics.IncrementDuplicate()
	}
}

func (s *Service) incrementMembershipFailure() {
	if s.metrics != nil {
		s.metrics.IncrementMembershipFailure()
	}
}

func (s *Service) incrementCompensation() {
	if s.metrics != nil {
		s.metrics.IncrementCompensation()
	}
}
