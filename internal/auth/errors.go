// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes surfaced by the authentication core.
const (
	CodeEmailInUse         = "AUTH_EMAIL_IN_USE"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeMissingToken       = "AUTH_MISSING_TOKEN"
	CodeUnauthenticated    = "SESSION_UNAUTHENTICATED"
	CodeHashingFailed      = "AUTH_HASHING_FAILED"
	CodeInvalidDigest      = "AUTH_INVALID_DIGEST"
	CodeInvalidAccount     = "AUTH_INVALID_ACCOUNT"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
)

// StorageError wraps a backend failure as STORAGE_UNAVAILABLE.
// Storage implementations use it for every error that is not a domain outcome.
func StorageError(err error, operation string) error {
	return oops.Code(CodeStorageUnavailable).
		With("operation", operation).
		Wrap(err)
}

// EmailInUseError reports that an account with email already exists.
func EmailInUseError(email string) error {
	return oops.Code(CodeEmailInUse).
		With("email", email).
		Errorf("email already in use")
}
