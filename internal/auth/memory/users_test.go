// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/memory"
	"github.com/holomush/authd/pkg/errutil"
)

func newAccount(t *testing.T, email, digest string) *auth.UserAccount {
	t.Helper()
	a, err := auth.NewUserAccount(email, "name", digest)
	require.NoError(t, err)
	return a
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()

	_, err := repo.GetByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	a := newAccount(t, "alice@example.com", "digest-1")
	require.NoError(t, repo.Create(ctx, a))

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = repo.GetByEmail(ctx, "Alice@example.com")
	assert.ErrorIs(t, err, auth.ErrNotFound, "lookup is exact-match")
}

func TestUserRepository_DuplicateKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()

	require.NoError(t, repo.Create(ctx, newAccount(t, "alice@example.com", "first")))
	err := repo.Create(ctx, newAccount(t, "alice@example.com", "second"))
	errutil.AssertErrorCode(t, err, auth.CodeEmailInUse)

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "first", got.PasswordDigest)
}

func TestUserRepository_ConcurrentCreateOneWins(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := auth.NewUserAccount("race@example.com", "", "d")
			if err != nil {
				return
			}
			if repo.Create(ctx, a) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, repo.Len())
}

func TestUserRepository_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewUserRepository()
	require.NoError(t, repo.Create(ctx, newAccount(t, "alice@example.com", "digest")))

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	got.PasswordDigest = "tampered"

	again, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "digest", again.PasswordDigest)
}
