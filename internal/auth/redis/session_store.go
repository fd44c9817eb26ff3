// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redis implements auth.SessionStore on Redis, using native key
// expiry so expired sessions are reclaimed without a sweeper.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "authd:session:"

// Client is the subset of *redis.Client used by SessionStore.
type Client interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Get(ctx context.Context, key string) *goredis.StringCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// record is the JSON value stored under each key.
type record struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore stores sessions under <prefix><token_hash>.
type SessionStore struct {
	client Client
	prefix string
	now    func() time.Time
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *SessionStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore creates a SessionStore on client.
func NewSessionStore(client Client, opts ...Option) (*SessionStore, error) {
	if client == nil {
		return nil, oops.Code("SESSION_STORE_INVALID_CONFIG").Errorf("redis client is required")
	}
	s := &SessionStore{client: client, prefix: DefaultKeyPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SessionStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

// Create issues a session and stores it with a TTL equal to its lifetime.
func (s *SessionStore) Create(ctx context.Context, userID ulid.ULID, ttl time.Duration) (*auth.Session, error) {
	session, err := auth.NewSession(userID, ttl, s.now().UTC())
	if err != nil {
		return nil, err
	}

	value, err := json.Marshal(record{
		UserID:    userID.String(),
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return nil, oops.Code("SESSION_ENCODE_FAILED").Wrap(err)
	}

	if err := s.client.Set(ctx, s.key(session.TokenHash), value, ttl).Err(); err != nil {
		return nil, oops.Code(auth.CodeStorageUnavailable).
			With("operation", "redis set session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return session, nil
}

// FindByToken returns the live session for token. The stored expiry is
// checked as well as the key TTL.
func (s *SessionStore) FindByToken(ctx context.Context, token string) (*auth.Session, error) {
	tokenHash := auth.HashSessionToken(token)

	raw, err := s.client.Get(ctx, s.key(tokenHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, auth.StorageError(err, "redis get session")
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, oops.Code(auth.CodeStorageUnavailable).With("operation", "decode session").Wrap(err)
	}
	userID, err := ulid.Parse(rec.UserID)
	if err != nil {
		return nil, oops.Code(auth.CodeStorageUnavailable).
			With("operation", "parse session user id").
			With("user_id", rec.UserID).
			Wrap(err)
	}

	session := &auth.Session{
		Token:     token,
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}
	if session.IsExpiredAt(s.now()) {
		return nil, auth.ErrNotFound
	}
	return session, nil
}

// DeleteByToken removes the key for token. Missing keys are not an error.
func (s *SessionStore) DeleteByToken(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(auth.HashSessionToken(token))).Err(); err != nil {
		return auth.StorageError(err, "redis delete session")
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts expired keys itself.
func (s *SessionStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

var _ auth.SessionStore = (*SessionStore)(nil)
