// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides in-process implementations of the auth storage
// contracts, for tests and single-instance deployments.
package memory

import (
	"context"
	"sync"

	"github.com/holomush/authd/internal/auth"
)

// UserRepository is an in-memory auth.UserRepository keyed by exact email.
type UserRepository struct {
	mu       sync.RWMutex
	accounts map[string]auth.UserAccount
}

// NewUserRepository creates an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{accounts: make(map[string]auth.UserAccount)}
}

// GetByEmail returns a copy of the stored account.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &account, nil
}

// Create stores account. The existence check and insert happen under one lock.
func (r *UserRepository) Create(_ context.Context, account *auth.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.Email]; exists {
		return auth.EmailInUseError(account.Email)
	}
	r.accounts[account.Email] = *account
	return nil
}

// Len returns the number of stored accounts.
func (r *UserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

var _ auth.UserRepository = (*UserRepository)(nil)
