package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"campusreg/internal/platform/postgres"
	"campusreg/internal/registration/models"
	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/sentinel"
	"campusreg/pkg/platform/tx"
)

const confirmedIndex = "registrations_one_confirmed"

// PostgresStore persists registration records. Writes join the ambient
// transaction from pkg/platform/tx so they commit or roll back together with
// the membership index.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const registrationColumns = `id, event_id, club_id, user_id, registrant_kind, guest_name, guest_email, guest_phone,
	team_id, status, payment_status, payment_id, additional_info, fields, created_at, updated_at, cancelled_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.Registration) error {
	fields, err := json.Marshal(nonNilFields(r.Fields))
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	_, err = tx.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO registrations (`+registrationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		uuid.UUID(r.ID), uuid.UUID(r.EventID), uuid.UUID(r.ClubID), uuid.UUID(r.UserID),
		string(r.Registrant.Kind), r.Registrant.Name, r.Registrant.Email, r.Registrant.Phone,
		nullableTeam(r.TeamID), string(r.Status), string(r.PaymentStatus), string(r.PaymentID),
		r.AdditionalInfo, fields, r.CreatedAt, r.UpdatedAt, r.CancelledAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, confirmedIndex) {
			return fmt.Errorf("confirmed registration exists: %w", sentinel.ErrConflict)
		}
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("registration %s: %w", r.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Registration) error {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE registrations
		SET status = $2, payment_status = $3, payment_id = $4, team_id = $5, updated_at = $6, cancelled_at = $7
		WHERE id = $1`,
		uuid.UUID(r.ID), string(r.Status), string(r.PaymentStatus), string(r.PaymentID),
		nullableTeam(r.TeamID), r.UpdatedAt, r.CancelledAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, confirmedIndex) {
			return fmt.Errorf("confirmed registration exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("registration %s: %w", r.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, uuid.UUID(regID))
	return scanOne(row)
}

func (s *PostgresStore) FindConfirmed(ctx context.Context, eventID id.EventID, userID id.UserID) (*models.Registration, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1 AND user_id = $2 AND status = 'confirmed'`,
		uuid.UUID(eventID), uuid.UUID(userID))
	return scanOne(row)
}

func (s *PostgresStore) ListByEvent(ctx context.Context, eventID id.EventID) ([]*models.Registration, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 ORDER BY created_at, id`,
		uuid.UUID(eventID))
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []*models.Registration
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*models.Registration, error) {
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("registration: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	return r, nil
}

func scan(row scanner) (*models.Registration, error) {
	var (
		r                       models.Registration
		regID, eventID, clubID  uuid.UUID
		userID                  uuid.UUID
		teamID                  uuid.NullUUID
		kind, status, payStatus string
		paymentID               string
		fields                  []byte
		cancelledAt             sql.NullTime
	)
	if err := row.Scan(&regID, &eventID, &clubID, &userID, &kind,
		&r.Registrant.Name, &r.Registrant.Email, &r.Registrant.Phone,
		&teamID, &status, &payStatus, &paymentID, &r.AdditionalInfo, &fields,
		&r.CreatedAt, &r.UpdatedAt, &cancelledAt); err != nil {
		return nil, err
	}
	r.ID = id.RegistrationID(regID)
	r.EventID = id.EventID(eventID)
	r.ClubID = id.ClubID(clubID)
	r.UserID = id.UserID(userID)
	r.Registrant.Kind = models.RegistrantKind(kind)
	if r.Registrant.Kind == models.RegistrantMember {
		r.Registrant.UserID = r.UserID
	}
	if teamID.Valid {
		t := id.TeamID(teamID.UUID)
		r.TeamID = &t
	}
	r.Status = models.Status(status)
	r.PaymentStatus = models.PaymentStatus(payStatus)
	r.PaymentID = id.PaymentID(paymentID)
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &r.Fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		r.CancelledAt = &t
	}
	return &r, nil
}

func nullableTeam(t *id.TeamID) uuid.NullUUID {
	if t == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*t), Valid: true}
}

func nonNilFields(f map[string]string) map[string]string {
	if f == nil {
		return map[string]string{}
	}
	return f
}
