// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides credential and session authentication primitives for authd.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUserAccount - creates a UserAccount with a validated email and password digest
//   - NewSession - creates a Session with a fresh random bearer token
//
// Direct struct initialization bypasses validation and may create invalid state.
// Storage implementations receive pre-validated types from these constructors.
//
// # Storage Contracts
//
// The core consumes two storage abstractions:
//   - UserRepository - one record per registered email, uniqueness enforced by storage
//   - SessionStore - opaque token to owning user, expired sessions read as absent
//
// # Services
//
// Service orchestrates Register, Login, Logout and ValidateSession. It is created
// with NewService, which validates its dependencies. Sweeper optionally purges
// expired sessions in the background.
//
// # Errors
//
// Every failure is an oops error carrying one of the Code* constants in errors.go.
// Callers map codes to transport responses; they never inspect messages.
package auth
