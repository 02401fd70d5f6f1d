package membership

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/tx"
)

// PostgresStore keeps the projections in user_event_memberships and
// event_user_memberships. Both rows are written in one transaction: the ambient
// registration transaction when ctx carries one, otherwise a local one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AddMembership(ctx context.Context, userID id.UserID, eventID id.EventID) error {
	return s.inTx(ctx, func(q tx.Querier) error {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO user_event_memberships (user_id, event_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			uuid.UUID(userID), uuid.UUID(eventID)); err != nil {
			return fmt.Errorf("insert user projection: %w", err)
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO event_user_memberships (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			uuid.UUID(eventID), uuid.UUID(userID)); err != nil {
			return fmt.Errorf("insert event projection: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) RemoveMembership(ctx context.Context, userID id.UserID, eventID id.EventID) error {
	return s.inTx(ctx, func(q tx.Querier) error {
		if _, err := q.ExecContext(ctx,
			`DELETE FROM user_event_memberships WHERE user_id = $1 AND event_id = $2`,
			uuid.UUID(userID), uuid.UUID(eventID)); err != nil {
			return fmt.Errorf("delete user projection: %w", err)
		}
		if _, err := q.ExecContext(ctx,
			`DELETE FROM event_user_memberships WHERE event_id = $1 AND user_id = $2`,
			uuid.UUID(eventID), uuid.UUID(userID)); err != nil {
			return fmt.Errorf("delete event projection: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) IsMember(ctx context.Context, userID id.UserID, eventID id.EventID) (bool, error) {
	var exists bool
	err := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_event_memberships WHERE user_id = $1 AND event_id = $2)`,
		uuid.UUID(userID), uuid.UUID(eventID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) MembersOf(ctx context.Context, eventID id.EventID) ([]id.UserID, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx,
		`SELECT user_id FROM event_user_memberships WHERE event_id = $1 ORDER BY user_id`, uuid.UUID(eventID))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	out := []id.UserID{}
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, id.UserID(u))
	}
	return out, rows.Err()
}

func (s *PostgresStore) EventsOf(ctx context.Context, userID id.UserID) ([]id.EventID, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx,
		`SELECT event_id FROM user_event_memberships WHERE user_id = $1 ORDER BY event_id`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []id.EventID{}
	for rows.Next() {
		var e uuid.UUID
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, id.EventID(e))
	}
	return out, rows.Err()
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(q tx.Querier) error) error {
	if ambient, ok := tx.From(ctx); ok {
		return fn(ambient)
	}
	local, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin membership tx: %w", err)
	}
	defer func() {
		_ = local.Rollback()
	}()
	if err := fn(local); err != nil {
		return err
	}
	return local.Commit()
}
