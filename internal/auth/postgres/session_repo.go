// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
)

// SessionRepository implements auth.SessionStore using PostgreSQL.
// Only the SHA-256 of each token is stored.
type SessionRepository struct {
	db  DB
	now func() time.Time
}

// SessionOption configures a SessionRepository.
type SessionOption func(*SessionRepository)

// WithClock overrides the time source for issuance and expiry comparisons.
func WithClock(now func() time.Time) SessionOption {
	return func(r *SessionRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB, opts ...SessionOption) *SessionRepository {
	r := &SessionRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create issues and stores a session for userID.
func (r *SessionRepository) Create(ctx context.Context, userID ulid.ULID, ttl time.Duration) (*auth.Session, error) {
	session, err := auth.NewSession(userID, ttl, r.now().UTC())
	if err != nil {
		return nil, err
	}

	_, err = conn(ctx, r.db).Exec(ctx, `
		INSERT INTO sessions (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, session.TokenHash, userID.String(), session.ExpiresAt, session.CreatedAt)
	if err != nil {
		return nil, oops.Code(auth.CodeStorageUnavailable).
			With("operation", "insert session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return session, nil
}

// FindByToken returns the session for token if it has not expired.
func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*auth.Session, error) {
	session := auth.Session{Token: token, TokenHash: auth.HashSessionToken(token)}
	var userIDStr string

	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT user_id, expires_at, created_at
		FROM sessions
		WHERE token_hash = $1 AND expires_at > $2
	`, session.TokenHash, r.now().UTC()).Scan(&userIDStr, &session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, auth.StorageError(err, "get session by token hash")
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code(auth.CodeStorageUnavailable).
			With("operation", "parse session user id").
			With("user_id", userIDStr).
			Wrap(err)
	}
	session.UserID = userID
	return &session, nil
}

// DeleteByToken removes the session for token. Missing rows are not an error.
func (r *SessionRepository) DeleteByToken(ctx context.Context, token string) error {
	_, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, auth.HashSessionToken(token))
	if err != nil {
		return auth.StorageError(err, "delete session")
	}
	return nil
}

// DeleteExpired removes all sessions expired at the current time.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, auth.StorageError(err, "delete expired sessions")
	}
	return result.RowsAffected(), nil
}

var _ auth.SessionStore = (*SessionRepository)(nil)
