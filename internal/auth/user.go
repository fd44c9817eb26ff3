// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account field constraints.
const (
	MaxEmailLength       = 254
	MaxDisplayNameLength = 100
)

// UserAccount represents a registered identity.
// PasswordDigest is never serialized to clients.
type UserAccount struct {
	ID             ulid.ULID `json:"id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"user_name"`
	PasswordDigest string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUserAccount creates a validated UserAccount with a fresh ID.
// Emails are stored exactly as given; lookups are exact-match.
func NewUserAccount(email, displayName, passwordDigest string) (*UserAccount, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if len(displayName) > MaxDisplayNameLength {
		return nil, oops.Code(CodeInvalidAccount).
			With("max", MaxDisplayNameLength).
			Errorf("display name must be at most %d characters", MaxDisplayNameLength)
	}
	if passwordDigest == "" {
		return nil, oops.Code(CodeInvalidAccount).Errorf("password digest cannot be empty")
	}

	return &UserAccount{
		ID:             ulid.Make(),
		Email:          email,
		DisplayName:    displayName,
		PasswordDigest: passwordDigest,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// ValidateEmail performs the minimal structural check on an email address:
// non-empty, bounded length, exactly one "@" with text on both sides, no whitespace.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeInvalidAccount).Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeInvalidAccount).
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return oops.Code(CodeInvalidAccount).Errorf("email cannot contain whitespace")
	}
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" || domain == "" || strings.Contains(domain, "@") {
		return oops.Code(CodeInvalidAccount).Errorf("email must have the form local@domain")
	}
	return nil
}

// UserRepository manages account persistence.
type UserRepository interface {
	// GetByEmail retrieves an account by exact email.
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*UserAccount, error)

	// Create stores a new account. Returns an AUTH_EMAIL_IN_USE error when
	// the email is already registered; implementations enforce this atomically.
	Create(ctx context.Context, account *UserAccount) error
}
