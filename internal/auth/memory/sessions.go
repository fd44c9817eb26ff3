// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/authd/internal/auth"
)

// SessionStore is an in-memory auth.SessionStore. Sessions are keyed by token
// hash, matching the persistent backends.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]auth.Session
	now      func() time.Time
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithClock overrides the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore creates an empty store.
func NewSessionStore(opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]auth.Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a session for userID.
func (s *SessionStore) Create(_ context.Context, userID ulid.ULID, ttl time.Duration) (*auth.Session, error) {
	session, err := auth.NewSession(userID, ttl, s.now())
	if err != nil {
		return nil, err
	}

	stored := *session
	stored.Token = ""

	s.mu.Lock()
	s.sessions[session.TokenHash] = stored
	s.mu.Unlock()

	return session, nil
}

// FindByToken returns the live session for token.
func (s *SessionStore) FindByToken(_ context.Context, token string) (*auth.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[auth.HashSessionToken(token)]
	s.mu.RUnlock()

	if !ok || session.IsExpiredAt(s.now()) {
		return nil, auth.ErrNotFound
	}
	session.Token = token
	return &session, nil
}

// DeleteByToken removes the session for token, if any.
func (s *SessionStore) DeleteByToken(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, auth.HashSessionToken(token))
	s.mu.Unlock()
	return nil
}

// DeleteExpired removes every session expired at the current time.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for hash, session := range s.sessions {
		if session.IsExpiredAt(now) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n, nil
}

// CountForUser returns the number of stored sessions, live or not, owned by userID.
func (s *SessionStore) CountForUser(userID ulid.ULID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, session := range s.sessions {
		if session.UserID == userID {
			n++
		}
	}
	return n
}

var _ auth.SessionStore = (*SessionStore)(nil)
