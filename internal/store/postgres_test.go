// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authd/pkg/errutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestPoolConfig_Apply(t *testing.T) {
	c := DefaultPoolConfig("postgres://authd:pw@localhost:5432/authd?sslmode=disable")
	c.MaxConns = 7

	cfg, err := c.pgxConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(7), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)
	assert.Equal(t, 5*time.Second, cfg.ConnConfig.ConnectTimeout)
	assert.Equal(t, "authd", cfg.ConnConfig.Database)
}

func TestPoolConfig_Invalid(t *testing.T) {
	_, err := PoolConfig{}.pgxConfig()
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")

	_, err = PoolConfig{URL: "postgres://%zz"}.pgxConfig()
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}

func TestPingWithRetry_EventuallySucceeds(t *testing.T) {
	calls := 0
	ping := func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}

	err := pingWithRetry(context.Background(), ping, 5, time.Millisecond, discard)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPingWithRetry_GivesUp(t *testing.T) {
	calls := 0
	ping := func(context.Context) error {
		calls++
		return errors.New("connection refused")
	}

	err := pingWithRetry(context.Background(), ping, 2, time.Millisecond, discard)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
	assert.Equal(t, 3, calls)
}

func TestPingWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pingWithRetry(ctx, func(context.Context) error { return errors.New("down") }, 10, time.Hour, discard)
	require.Error(t, err)
}
