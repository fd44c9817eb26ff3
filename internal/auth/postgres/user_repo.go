// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
)

// UserRepository implements auth.UserRepository using PostgreSQL.
// Email uniqueness is enforced by the accounts_email_unique constraint.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail retrieves an account by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.UserAccount, error) {
	var (
		account auth.UserAccount
		idStr   string
	)
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, email, display_name, password_digest, created_at
		FROM accounts
		WHERE email = $1
	`, email).Scan(&idStr, &account.Email, &account.DisplayName, &account.PasswordDigest, &account.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, auth.StorageError(err, "get account by email")
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code(auth.CodeStorageUnavailable).
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}
	account.ID = id
	return &account, nil
}

// Create inserts account. A unique violation on email becomes AUTH_EMAIL_IN_USE.
func (r *UserRepository) Create(ctx context.Context, account *auth.UserAccount) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO accounts (id, email, display_name, password_digest, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, account.ID.String(), account.Email, account.DisplayName, account.PasswordDigest, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return auth.EmailInUseError(account.Email)
		}
		return oops.Code(auth.CodeStorageUnavailable).
			With("operation", "insert account").
			With("user_id", account.ID.String()).
			Wrap(err)
	}
	return nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
