package main

import (
	"context"
	"database/sql"
	"time"

	regservice "campusreg/internal/registration/service"
	id "campusreg/pkg/domain"
	dErrors "campusreg/pkg/domain-errors"
	"campusreg/pkg/platform/tx"
)

// registrationPostgresTx runs a registration step in one SQL transaction,
// holding a transaction-scoped advisory lock on the event so writes for the
// same event serialize across API instances.
type registrationPostgresTx struct {
	db      *sql.DB
	stores  regservice.Stores
	timeout time.Duration
}

func newRegistrationPostgresTx(db *sql.DB, stores regservice.Stores, timeout time.Duration) *registrationPostgresTx {
	return &registrationPostgresTx{db: db, stores: stores, timeout: timeout}
}

func (t *registrationPostgresTx) RunInTx(ctx context.Context, eventID id.EventID, fn func(ctx context.Context, stores regservice.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = regservice.DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, eventID.String()); err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: event lock not acquired")
		}
		return err
	}

	if err := fn(tx.WithTx(ctx, sqlTx), t.stores); err != nil {
		return err
	}

	return sqlTx.Commit()
}
