// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
)

// Transactor implements auth.Transactor on a PostgreSQL pool.
// The active pgx.Tx travels in the context so both repositories join it.
type Transactor struct {
	db DB
}

// NewTransactor creates a Transactor backed by db.
func NewTransactor(db DB) *Transactor {
	return &Transactor{db: db}
}

// InTransaction begins a transaction, calls fn, and commits if fn returns nil.
// Otherwise the transaction is rolled back and fn's error returned.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	tx, err := t.db.Begin(ctx)
	if err != nil {
		return oops.Code(auth.CodeStorageUnavailable).With("operation", "begin transaction").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code(auth.CodeStorageUnavailable).With("operation", "commit transaction").Wrap(err)
	}
	return nil
}

var _ auth.Transactor = (*Transactor)(nil)
