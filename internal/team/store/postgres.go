package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"campusreg/internal/platform/postgres"
	"campusreg/internal/team/models"
	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/sentinel"
	"campusreg/pkg/platform/tx"
)

const (
	teamNameIndex   = "teams_event_name"
	oneTeamPerEvent = "team_members_one_team"
)

// PostgresStore keeps teams and their ordered rosters.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfNameAvailable(ctx context.Context, team *models.Team) error {
	q := tx.Pick(ctx, s.db)
	_, err := q.ExecContext(ctx,
		`INSERT INTO teams (id, event_id, name, created_by, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(team.ID), uuid.UUID(team.EventID), team.Name, uuid.UUID(team.CreatedBy), team.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, teamNameIndex) {
			return fmt.Errorf("team name %q: %w", team.Name, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert team: %w", err)
	}
	for i, m := range team.Members {
		if err := s.insertMember(ctx, q, team.ID, team.EventID, m, i+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) insertMember(ctx context.Context, q tx.Querier, teamID id.TeamID, eventID id.EventID, m models.Member, position int) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO team_members (team_id, event_id, user_id, name, email, position, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(teamID), uuid.UUID(eventID), uuid.UUID(m.UserID), m.Name, m.Email, position, m.JoinedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("user %s already on a team: %w", m.UserID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert team member: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, eventID id.EventID, teamID id.TeamID) (*models.Team, error) {
	teams, err := s.query(ctx,
		`SELECT id, event_id, name, created_by, created_at FROM teams WHERE id = $1 AND event_id = $2`,
		uuid.UUID(teamID), uuid.UUID(eventID))
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("team %s: %w", teamID, sentinel.ErrNotFound)
	}
	return teams[0], nil
}

func (s *PostgresStore) FindByName(ctx context.Context, eventID id.EventID, name string) (*models.Team, error) {
	teams, err := s.query(ctx,
		`SELECT id, event_id, name, created_by, created_at FROM teams WHERE event_id = $1 AND lower(name) = $2`,
		uuid.UUID(eventID), models.NormalizeName(name))
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("team name %q: %w", name, sentinel.ErrNotFound)
	}
	return teams[0], nil
}

func (s *PostgresStore) FindByMember(ctx context.Context, eventID id.EventID, userID id.UserID) (*models.Team, error) {
	teams, err := s.query(ctx, `
		SELECT t.id, t.event_id, t.name, t.created_by, t.created_at
		FROM teams t JOIN team_members m ON m.team_id = t.id
		WHERE m.event_id = $1 AND m.user_id = $2`,
		uuid.UUID(eventID), uuid.UUID(userID))
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("team for user %s: %w", userID, sentinel.ErrNotFound)
	}
	return teams[0], nil
}

// AddMember appends at the next roster position. The caller serializes joins for
// an event, so MAX(position)+1 cannot race.
func (s *PostgresStore) AddMember(ctx context.Context, teamID id.TeamID, member models.Member) error {
	q := tx.Pick(ctx, s.db)
	var (
		eventID uuid.UUID
		next    int
	)
	err := q.QueryRowContext(ctx, `
		SELECT t.event_id, COALESCE(MAX(m.position), 0) + 1
		FROM teams t LEFT JOIN team_members m ON m.team_id = t.id
		WHERE t.id = $1
		GROUP BY t.event_id`, uuid.UUID(teamID)).Scan(&eventID, &next)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("team %s: %w", teamID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load team position: %w", err)
	}
	return s.insertMember(ctx, q, teamID, id.EventID(eventID), member, next)
}

func (s *PostgresStore) RemoveMember(ctx context.Context, teamID id.TeamID, userID id.UserID) error {
	if _, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`,
		uuid.UUID(teamID), uuid.UUID(userID)); err != nil {
		return fmt.Errorf("remove team member: %w", err)
	}
	return nil
}

// DeleteIfEmpty removes the team only when no member rows remain.
func (s *PostgresStore) DeleteIfEmpty(ctx context.Context, teamID id.TeamID) (bool, error) {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		DELETE FROM teams t
		WHERE t.id = $1 AND NOT EXISTS (SELECT 1 FROM team_members m WHERE m.team_id = t.id)`,
		uuid.UUID(teamID))
	if err != nil {
		return false, fmt.Errorf("delete empty team: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete empty team: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) SearchByPrefix(ctx context.Context, eventID id.EventID, prefix string, limit int) ([]*models.Team, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, `
		SELECT id, event_id, name, created_by, created_at FROM teams
		WHERE event_id = $1 AND lower(name) LIKE $2 ESCAPE '\'
		ORDER BY lower(name) LIMIT $3`,
		uuid.UUID(eventID), escapeLike(models.NormalizeName(prefix))+"%", limit)
}

// query loads teams and then their rosters in one ANY($1) round trip.
func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Team, error) {
	q := tx.Pick(ctx, s.db)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	var (
		teams []*models.Team
		ids   []string
		index = map[id.TeamID]*models.Team{}
	)
	for rows.Next() {
		var (
			t                  models.Team
			teamID, eventID, c uuid.UUID
		)
		if err := rows.Scan(&teamID, &eventID, &t.Name, &c, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan team: %w", err)
		}
		t.ID, t.EventID, t.CreatedBy = id.TeamID(teamID), id.EventID(eventID), id.UserID(c)
		t.Members = []models.Member{}
		teams = append(teams, &t)
		ids = append(ids, teamID.String())
		index[t.ID] = &t
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return teams, nil
	}

	mrows, err := q.QueryContext(ctx, `
		SELECT team_id, user_id, name, email, joined_at FROM team_members
		WHERE team_id = ANY($1::uuid[]) ORDER BY team_id, position`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query team members: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var (
			m              models.Member
			teamID, userID uuid.UUID
		)
		if err := mrows.Scan(&teamID, &userID, &m.Name, &m.Email, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		m.UserID = id.UserID(userID)
		if t := index[id.TeamID(teamID)]; t != nil {
			t.Members = append(t.Members, m)
		}
	}
	return teams, mrows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
