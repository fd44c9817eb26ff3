// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// Operation outcomes reported to a Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Recorder receives one observation per completed service operation.
type Recorder interface {
	RecordAuth(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuth(string, string) {}

// fallbackDummyDigest is used if the configured hasher cannot produce a dummy digest.
// It is a well-formed argon2id digest that no password matches.
//
//nolint:gosec // G101: intentionally fake digest for timing equalization, not a credential.
const fallbackDummyDigest = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service provides registration, login, logout, and session validation.
type Service struct {
	users      UserRepository
	sessions   SessionStore
	hasher     PasswordHasher
	transactor Transactor // nil when the stores cannot share a transaction
	recorder   Recorder
	logger     *slog.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

// Option configures a Service.
type Option func(*Service)

// WithTransactor makes Register create the account and its session in one transaction.
func WithTransactor(t Transactor) Option {
	return func(s *Service) {
		if t != nil {
			s.transactor = t
		}
	}
}

// WithRecorder sets the operation metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. users, sessions and hasher are required.
func NewService(users UserRepository, sessions SessionStore, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}

	s := &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		recorder: noopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an account and an initial session for it.
// The password is hashed before anything is written; a hashing failure leaves no state.
func (s *Service) Register(ctx context.Context, email, displayName, password string) (*UserAccount, *Session, error) {
	if err := ValidateEmail(email); err != nil {
		s.recorder.RecordAuth("register", OutcomeFailure)
		return nil, nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.recorder.RecordAuth("register", OutcomeFailure)
		return nil, nil, EmailInUseError(email)
	} else if !errors.Is(err, ErrNotFound) {
		s.recorder.RecordAuth("register", OutcomeError)
		return nil, nil, oops.With("operation", "lookup email").Wrap(err)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		s.recorder.RecordAuth("register", OutcomeFailure)
		return nil, nil, oops.Code(CodeHashingFailed).With("operation", "hash password").Wrap(err)
	}

	account, err := NewUserAccount(email, displayName, digest)
	if err != nil {
		s.recorder.RecordAuth("register", OutcomeFailure)
		return nil, nil, err
	}

	var session *Session
	if s.transactor != nil {
		session, err = s.createInTransaction(ctx, account)
	} else {
		session, err = s.createCompensated(ctx, account)
	}
	if err != nil {
		if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() == CodeEmailInUse {
			s.recorder.RecordAuth("register", OutcomeFailure)
		} else {
			s.recorder.RecordAuth("register", OutcomeError)
		}
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "account registered",
		"user_id", account.ID.String(),
		"session", MaskToken(session.Token))
	s.recorder.RecordAuth("register", OutcomeSuccess)
	return account, session, nil
}

// createInTransaction writes the account and its session in one transaction.
func (s *Service) createInTransaction(ctx context.Context, account *UserAccount) (*Session, error) {
	var session *Session
	err := s.transactor.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, account); err != nil {
			return err
		}
		created, err := s.sessions.Create(ctx, account.ID, SessionTTL)
		if err != nil {
			return oops.With("operation", "create session").Wrap(err)
		}
		session = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// createCompensated is used when the stores cannot share a transaction.
// The session is written first under the pre-generated account ID and deleted
// again if the account insert fails, so a failure leaves no account behind.
func (s *Service) createCompensated(ctx context.Context, account *UserAccount) (*Session, error) {
	session, err := s.sessions.Create(ctx, account.ID, SessionTTL)
	if err != nil {
		return nil, oops.With("operation", "create session").Wrap(err)
	}
	if err := s.users.Create(ctx, account); err != nil {
		if delErr := s.sessions.DeleteByToken(ctx, session.Token); delErr != nil {
			s.logger.WarnContext(ctx, "orphaned session after failed registration",
				"session", MaskToken(session.Token),
				"error", delErr)
		}
		return nil, err
	}
	return session, nil
}

// Login verifies credentials and issues a new session.
// Unknown email and wrong password are indistinguishable to the caller; an unknown
// email still pays for a full Verify against a dummy digest.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	account, lookupErr := s.users.GetByEmail(ctx, email)

	var targetDigest string
	accountExists := false
	switch {
	case lookupErr == nil:
		targetDigest = account.PasswordDigest
		accountExists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetDigest = s.dummy()
	default:
		s.recorder.RecordAuth("login", OutcomeError)
		return nil, oops.With("operation", "lookup email").Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetDigest)
	if verifyErr != nil && accountExists {
		s.recorder.RecordAuth("login", OutcomeError)
		s.logger.ErrorContext(ctx, "stored digest is malformed",
			"user_id", account.ID.String(),
			"error", verifyErr)
		return nil, oops.With("operation", "verify password").
			With("user_id", account.ID.String()).
			Wrap(verifyErr)
	}

	if !accountExists || !valid {
		reason := "wrong password"
		if !accountExists {
			reason = "unknown email"
		}
		s.logger.InfoContext(ctx, "login rejected", "reason", reason)
		s.recorder.RecordAuth("login", OutcomeFailure)
		return nil, oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
	}

	session, err := s.sessions.Create(ctx, account.ID, SessionTTL)
	if err != nil {
		s.recorder.RecordAuth("login", OutcomeError)
		return nil, oops.With("operation", "create session").
			With("user_id", account.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "login succeeded",
		"user_id", account.ID.String(),
		"session", MaskToken(session.Token))
	s.recorder.RecordAuth("login", OutcomeSuccess)
	return session, nil
}

// Logout deletes the session identified by token. Unknown tokens succeed.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		s.recorder.RecordAuth("logout", OutcomeFailure)
		return oops.Code(CodeMissingToken).Errorf("session token is required")
	}

	if err := s.sessions.DeleteByToken(ctx, token); err != nil {
		s.recorder.RecordAuth("logout", OutcomeError)
		return oops.With("operation", "delete session").
			With("session", MaskToken(token)).
			Wrap(err)
	}

	s.recorder.RecordAuth("logout", OutcomeSuccess)
	return nil
}

// ValidateSession resolves token to a live session. It never writes.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code(CodeUnauthenticated).Errorf("no session token")
	}

	session, err := s.sessions.FindByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code(CodeUnauthenticated).Errorf("session not found or expired")
	}
	if err != nil {
		return nil, oops.With("operation", "find session").
			With("session", MaskToken(token)).
			Wrap(err)
	}
	return session, nil
}

// dummy returns a digest produced by the configured hasher so that unknown-email
// logins cost the same as real ones.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyDigest = fallbackDummyDigest
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return
		}
		if digest, err := s.hasher.Hash(hex.EncodeToString(buf)); err == nil {
			s.dummyDigest = digest
		}
	})
	return s.dummyDigest
}
