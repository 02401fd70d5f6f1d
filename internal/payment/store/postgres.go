package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"campusreg/internal/catalog"
	"campusreg/internal/payment/models"
	"campusreg/internal/platform/postgres"
	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/sentinel"
	"campusreg/pkg/platform/tx"
)

const orderColumns = `id, event_id, user_id, registrant, team_id, additional_info, fields, amount_cents, currency,
	provider, provider_ref, checkout_url, payment_id, state, failure_reason, registration_id, created_at, updated_at`

// PostgresOrders persists orders. Execute locks the row with FOR UPDATE for the
// duration of the callback.
type PostgresOrders struct {
	db *sql.DB
}

func NewPostgresOrders(db *sql.DB) *PostgresOrders {
	return &PostgresOrders{db: db}
}

func (s *PostgresOrders) Create(ctx context.Context, o *models.Order) error {
	registrant, fields, err := encodeOrder(o)
	if err != nil {
		return err
	}
	_, err = tx.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		uuid.UUID(o.ID), uuid.UUID(o.EventID), uuid.UUID(o.UserID), registrant, nullableTeam(o.TeamID),
		o.Metadata.AdditionalInfo, fields, o.Amount.AmountCents, o.Amount.Currency,
		o.Provider, o.ProviderRef, o.CheckoutURL, string(o.PaymentID), string(o.State), o.FailureReason,
		nullableRegistration(o.RegistrationID), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("order %s: %w", o.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresOrders) FindByID(ctx context.Context, orderID id.OrderID) (*models.Order, error) {
	return scanOrder(tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, uuid.UUID(orderID)))
}

func (s *PostgresOrders) FindByProviderRef(ctx context.Context, provider, ref string) (*models.Order, error) {
	if ref == "" {
		return nil, fmt.Errorf("order ref: %w", sentinel.ErrNotFound)
	}
	return scanOrder(tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE provider = $1 AND provider_ref = $2`, provider, ref))
}

func (s *PostgresOrders) FindByPaymentID(ctx context.Context, paymentID id.PaymentID) (*models.Order, error) {
	if paymentID.IsNil() {
		return nil, fmt.Errorf("order for payment: %w", sentinel.ErrNotFound)
	}
	return scanOrder(tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_id = $1`, string(paymentID)))
}

func (s *PostgresOrders) Execute(ctx context.Context, orderID id.OrderID, fn func(*models.Order) error) (*models.Order, error) {
	if ambient, ok := tx.From(ctx); ok {
		return s.execute(ctx, ambient, orderID, fn)
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin order tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	o, err := s.execute(ctx, sqlTx, orderID, fn)
	if err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order tx: %w", err)
	}
	return o, nil
}

func (s *PostgresOrders) execute(ctx context.Context, q tx.Querier, orderID id.OrderID, fn func(*models.Order) error) (*models.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, uuid.UUID(orderID)))
	if err != nil {
		return nil, err
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	_, err = q.ExecContext(ctx, `
		UPDATE orders
		SET provider_ref = $2, checkout_url = $3, payment_id = $4, state = $5, failure_reason = $6,
		    registration_id = $7, updated_at = $8
		WHERE id = $1`,
		uuid.UUID(o.ID), o.ProviderRef, o.CheckoutURL, string(o.PaymentID), string(o.State),
		o.FailureReason, nullableRegistration(o.RegistrationID), o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return o, nil
}

func encodeOrder(o *models.Order) (registrant, fields []byte, err error) {
	registrant, err = json.Marshal(o.Registrant)
	if err != nil {
		return nil, nil, fmt.Errorf("encode registrant: %w", err)
	}
	f := o.Metadata.Fields
	if f == nil {
		f = map[string]string{}
	}
	fields, err = json.Marshal(f)
	if err != nil {
		return nil, nil, fmt.Errorf("encode fields: %w", err)
	}
	return registrant, fields, nil
}

func scanOrder(row *sql.Row) (*models.Order, error) {
	var (
		o                        models.Order
		orderID, eventID, userID uuid.UUID
		teamID, regID            uuid.NullUUID
		registrant, fields       []byte
		paymentID, state         string
	)
	err := row.Scan(&orderID, &eventID, &userID, &registrant, &teamID, &o.Metadata.AdditionalInfo, &fields,
		&o.Amount.AmountCents, &o.Amount.Currency, &o.Provider, &o.ProviderRef, &o.CheckoutURL,
		&paymentID, &state, &o.FailureReason, &regID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.ID, o.EventID, o.UserID = id.OrderID(orderID), id.EventID(eventID), id.UserID(userID)
	o.PaymentID = id.PaymentID(paymentID)
	o.State = models.OrderState(state)
	if teamID.Valid {
		t := id.TeamID(teamID.UUID)
		o.TeamID = &t
	}
	if regID.Valid {
		r := id.RegistrationID(regID.UUID)
		o.RegistrationID = &r
	}
	if err := json.Unmarshal(registrant, &o.Registrant); err != nil {
		return nil, fmt.Errorf("decode registrant: %w", err)
	}
	if len(fields) > 0 && string(fields) != "{}" {
		if err := json.Unmarshal(fields, &o.Metadata.Fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
	}
	return &o, nil
}

// PostgresRecords is the payment_records ledger. The payment_id primary key
// and the partial unique index on non-duplicate registration_id enforce single
// use.
type PostgresRecords struct {
	db *sql.DB
}

func NewPostgresRecords(db *sql.DB) *PostgresRecords {
	return &PostgresRecords{db: db}
}

func (s *PostgresRecords) Create(ctx context.Context, rec *models.PaymentRecord) error {
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO payment_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(rec.PaymentID), uuid.UUID(rec.RegistrationID), uuid.UUID(rec.EventID), uuid.UUID(rec.ClubID),
		uuid.UUID(rec.UserID), rec.Amount.AmountCents, rec.Amount.Currency, rec.Duplicate, rec.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("payment %s: %w", rec.PaymentID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert payment record: %w", err)
	}
	return nil
}

const recordColumns = `payment_id, registration_id, event_id, club_id, user_id, amount_cents, currency, duplicate, created_at`

func (s *PostgresRecords) FindByPaymentID(ctx context.Context, paymentID id.PaymentID) (*models.PaymentRecord, error) {
	return scanRecord(tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM payment_records WHERE payment_id = $1`, string(paymentID)))
}

func (s *PostgresRecords) FindByRegistration(ctx context.Context, regID id.RegistrationID) (*models.PaymentRecord, error) {
	return scanRecord(tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM payment_records WHERE registration_id = $1 AND NOT duplicate`, uuid.UUID(regID)))
}

func scanRecord(row *sql.Row) (*models.PaymentRecord, error) {
	var (
		rec                            models.PaymentRecord
		paymentID                      string
		regID, eventID, clubID, userID uuid.UUID
		amount                         catalog.Money
	)
	err := row.Scan(&paymentID, &regID, &eventID, &clubID, &userID, &amount.AmountCents, &amount.Currency, &rec.Duplicate, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment record: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment record: %w", err)
	}
	rec.PaymentID = id.PaymentID(paymentID)
	rec.RegistrationID = id.RegistrationID(regID)
	rec.EventID = id.EventID(eventID)
	rec.ClubID = id.ClubID(clubID)
	rec.UserID = id.UserID(userID)
	rec.Amount = amount
	return &rec, nil
}

func nullableTeam(t *id.TeamID) uuid.NullUUID {
	if t == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*t), Valid: true}
}

func nullableRegistration(r *id.RegistrationID) uuid.NullUUID {
	if r == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*r), Valid: true}
}
