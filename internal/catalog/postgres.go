package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/sentinel"
)

// PostgresStore reads events from the events table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, club_id, title, fee_cents, fee_currency, registration_mode, max_team_size, starts_at`

func (s *PostgresStore) FindEvent(ctx context.Context, eventID id.EventID) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, uuid.UUID(eventID))
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find event: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at NULLS LAST, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*Event, error) {
	var (
		e        Event
		eventID  uuid.UUID
		clubID   uuid.UUID
		feeCents sql.NullInt64
		currency sql.NullString
		startsAt sql.NullTime
		mode     string
	)
	if err := row.Scan(&eventID, &clubID, &e.Title, &feeCents, &currency, &mode, &e.MaxTeamSize, &startsAt); err != nil {
		return nil, err
	}
	e.ID = id.EventID(eventID)
	e.ClubID = id.ClubID(clubID)
	e.RegistrationMode = RegistrationMode(mode)
	if feeCents.Valid && feeCents.Int64 > 0 {
		e.Fee = &Money{AmountCents: feeCents.Int64, Currency: currency.String}
	}
	if startsAt.Valid {
		e.StartsAt = startsAt.Time
	}
	return &e, nil
}
