package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"campusreg/internal/catalog"
	teammodels "campusreg/internal/team/models"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/sentinel"
	"campusreg/pkg/requestcontext"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

// CreateTeam creates a team for a team event with creator as its first member.
// Names are unique per event, compared case-insensitively. A creator already
// on a team or registered for the event is rejected with AlreadyOnTeam.
func (s *Service) CreateTeam(ctx context.Context, eventID id.EventID, name string, creator id.UserID) (team *teammodels.Team, err error) {
	ctx, span := s.startSpan(ctx, "registration.CreateTeam", eventID, creator)
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(name) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "team name is required")
	}
	event, member, err := s.loadTeamContext(ctx, eventID, creator)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, event.ID, func(ctx context.Context, st Stores) error {
		if _, err := st.Teams.FindByName(ctx, eventID, name); err == nil {
			return dErrors.New(dErrors.CodeDuplicateTeamName, "a team with this name already exists for the event")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if err := ensureUncommitted(ctx, st, eventID, creator, nil); err != nil {
			return err
		}

		t, err := teammodels.NewTeam(id.TeamID(uuid.New()), eventID, name, member, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		if err := st.Teams.CreateIfNameAvailable(ctx, t); err != nil {
			return translateTeamWrite(err)
		}
		team = t
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(err, dErrors.CodeTeamNotFound, "failed to create team")
	}

	if s.metrics != nil {
		s.metrics.IncrementTeamCreated()
	}
	s.logger.InfoContext(ctx, "team created",
		"team_id", team.ID.String(),
		"event_id", eventID.String(),
		"user_id", creator.String(),
	)
	return team, nil
}

// JoinTeam appends userID to the team's roster. Joining the same team twice
// returns the team unchanged.
func (s *Service) JoinTeam(ctx context.Context, eventID id.EventID, teamID id.TeamID, userID id.UserID) (team *teammodels.Team, err error) {
	ctx, span := s.startSpan(ctx, "registration.JoinTeam", eventID, userID)
	span.SetAttributes(attribute.String("team_id", teamID.String()))
	defer func() { endSpan(span, err) }()

	event, member, err := s.loadTeamContext(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	joined := false
	err = s.tx.RunInTx(ctx, event.ID, func(ctx context.Context, st Stores) error {
		t, err := st.Teams.FindByID(ctx, eventID, teamID)
		if err != nil {
			return wrapStoreErr(err, dErrors.CodeTeamNotFound, "team not found")
		}
		if t.HasMember(userID) {
			team = t
			return nil
		}
		if err := ensureUncommitted(ctx, st, eventID, userID, &teamID); err != nil {
			return err
		}
		if t.IsFull(event.MaxTeamSize) {
			return dErrors.New(dErrors.CodeTeamFull, "team is full")
		}

		member.JoinedAt = requestcontext.Now(ctx)
		if err := st.Teams.AddMember(ctx, teamID, member); err != nil {
			return translateTeamWrite(err)
		}
		t.Members = append(t.Members, member)
		team, joined = t, true
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(err, dErrors.CodeTeamNotFound, "failed to join team")
	}

	if joined {
		if s.metrics != nil {
			s.metrics.IncrementTeamJoin()
		}
		s.logger.InfoContext(ctx, "team joined",
			"team_id", teamID.String(),
			"event_id", eventID.String(),
			"user_id", userID.String(),
		)
	}
	return team, nil
}

// SearchTeams lists the event's teams whose name starts with prefix.
func (s *Service) SearchTeams(ctx context.Context, eventID id.EventID, prefix string, limit int) ([]*teammodels.Team, error) {
	if eventID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "event ID is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	teams, err := s.reads.Teams.SearchByPrefix(ctx, eventID, strings.TrimSpace(prefix), limit)
	if err != nil {
		return nil, wrapStoreErr(err, dErrors.CodeNotFound, "failed to search teams")
	}
	return teams, nil
}

// loadTeamContext fetches the event and the user's profile concurrently.
func (s *Service) loadTeamContext(ctx context.Context, eventID id.EventID, userID id.UserID) (*catalog.Event, teammodels.Member, error) {
	if userID.IsNil() {
		return nil, teammodels.Member{}, dErrors.New(dErrors.CodeUnauthorized, "user is required")
	}
	var (
		event  *catalog.Event
		member = teammodels.Member{UserID: userID}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := s.findEvent(gctx, eventID)
		if err != nil {
			return err
		}
		if !e.IsTeamEvent() {
			return dErrors.New(dErrors.CodeValidation, "event does not register teams")
		}
		event = e
		return nil
	})
	if s.directory != nil {
		g.Go(func() error {
			u, err := s.directory.FindUser(gctx, userID)
			if err != nil {
				// Profiles only decorate the roster.
				s.logger.WarnContext(gctx, "profile lookup failed",
					"user_id", userID.String(),
					"error", err,
				)
				return nil
			}
			member.Name, member.Email = u.Name, u.Email
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, teammodels.Member{}, err
	}
	return event, member, nil
}

// ensureUncommitted rejects a user who is already on a team other than
// allowedTeam, or registered for the event.
func ensureUncommitted(ctx context.Context, st Stores, eventID id.EventID, userID id.UserID, allowedTeam *id.TeamID) error {
	current, err := st.Teams.FindByMember(ctx, eventID, userID)
	switch {
	case err == nil && (allowedTeam == nil || current.ID != *allowedTeam):
		return dErrors.New(dErrors.CodeAlreadyOnTeam, "user is already on a team for this event")
	case err != nil && !errors.Is(err, sentinel.ErrNotFound):
		return err
	}
	_, err = st.Registrations.FindConfirmed(ctx, eventID, userID)
	switch {
	case err == nil:
		return dErrors.New(dErrors.CodeAlreadyOnTeam, "user is already registered for this event")
	case !errors.Is(err, sentinel.ErrNotFound):
		return err
	}
	return nil
}

func translateTeamWrite(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeDuplicateTeamName, "a team with this name already exists for the event")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeAlreadyOnTeam, "user is already on a team for this event")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeTeamNotFound, "team not found")
	}
	return err
}
