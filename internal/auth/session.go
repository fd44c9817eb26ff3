// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32                 // 32 bytes = 64 hex chars
	SessionTTL        = 7 * 24 * time.Hour // fixed lifetime from issuance
)

// Session is an authenticated bearer session.
// Token is the plaintext credential handed to the client; only TokenHash is persisted.
type Session struct {
	Token     string
	TokenHash string
	UserID    ulid.ULID
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSession creates a Session for userID with a fresh random token,
// issued at now and expiring ttl later.
func NewSession(userID ulid.ULID, ttl time.Duration, now time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if ttl <= 0 {
		return nil, oops.Code("SESSION_INVALID_TTL").With("ttl", ttl.String()).Errorf("ttl must be positive")
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:     token,
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// IsExpiredAt reports whether the session is invalid at t.
// A session is invalid at or after its ExpiresAt instant.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the client; the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashSessionToken(token)

	return token, hash, nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// MaskToken shortens a token for log output.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}

// SessionStore manages session persistence.
type SessionStore interface {
	// Create generates a new token for userID, persists the session with
	// ExpiresAt = now + ttl, and returns it with the plaintext Token set.
	Create(ctx context.Context, userID ulid.ULID, ttl time.Duration) (*Session, error)

	// FindByToken resolves a plaintext token. Returns ErrNotFound when the
	// token is unknown or the session has expired.
	FindByToken(ctx context.Context, token string) (*Session, error)

	// DeleteByToken removes the session for token. Deleting an unknown
	// token is not an error.
	DeleteByToken(ctx context.Context, token string) error

	// DeleteExpired removes all expired sessions and returns the count
	// of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
