// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/holomush/authd/internal/auth/postgres"
	authredis "github.com/holomush/authd/internal/auth/redis"
	"github.com/holomush/authd/internal/config"
	"github.com/holomush/authd/internal/store"
)

// Pool is the subset of *pgxpool.Pool used by the commands.
type Pool interface {
	postgres.DB
	Ping(ctx context.Context) error
	Close()
}

// RedisClient is the subset of *redis.Client used by the commands.
type RedisClient interface {
	authredis.Client
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Deps contains injectable dependencies shared by the commands.
// All fields with nil values use their default implementations.
type Deps struct {
	// PoolFactory opens the PostgreSQL pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (Pool, error)

	// RedisFactory creates a Redis client.
	// Default: redis.NewClient
	RedisFactory func(cfg config.RedisConfig) RedisClient

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// Ready is called with the API address once serve is accepting requests.
	Ready func(apiAddr string)
}

func (d *Deps) withDefaults() *Deps {
	if d == nil {
		d = &Deps{}
	}
	if d.PoolFactory == nil {
		d.PoolFactory = func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (Pool, error) {
			return store.Connect(ctx, cfg, logger)
		}
	}
	if d.RedisFactory == nil {
		d.RedisFactory = func(cfg config.RedisConfig) RedisClient {
			return goredis.NewClient(&goredis.Options{
				Addr:     cfg.Addr,
				Password: cfg.Password,
				DB:       cfg.DB,
			})
		}
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if d.Ready == nil {
		d.Ready = func(string) {}
	}
	return d
}
