// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/memory"
	"github.com/holomush/authd/internal/auth/postgres"
	authredis "github.com/holomush/authd/internal/auth/redis"
	"github.com/holomush/authd/internal/config"
	"github.com/holomush/authd/internal/store"
)

// backends holds the storage selected by configuration.
type backends struct {
	users      auth.UserRepository
	sessions   auth.SessionStore
	transactor auth.Transactor // nil unless both stores share one database
	pool       Pool
	redis      RedisClient
}

// openBackends connects the configured stores. Callers must call close.
// migrate is applied to the database before any repository is built.
func openBackends(ctx context.Context, cfg *config.Config, deps *Deps, migrate bool, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.NeedsPostgres() {
		poolCfg := store.DefaultPoolConfig(cfg.Database.URL)
		poolCfg.MaxConns = cfg.Database.MaxConns
		poolCfg.ConnectAttempts = cfg.Database.ConnectAttempts

		pool, err := deps.PoolFactory(ctx, poolCfg, logger)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		b.pool = pool

		if migrate {
			if err := runAutoMigrate(cfg.Database.URL, deps, logger); err != nil {
				b.close()
				return nil, err
			}
		}
	}

	switch cfg.Users.Backend {
	case config.BackendPostgres:
		b.users = postgres.NewUserRepository(b.pool)
	default:
		b.users = memory.NewUserRepository()
	}

	switch cfg.Sessions.Backend {
	case config.BackendPostgres:
		b.sessions = postgres.NewSessionRepository(b.pool)
	case config.BackendRedis:
		client := deps.RedisFactory(cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close() //nolint:errcheck // ping error takes precedence
			b.close()
			return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
		}
		b.redis = client
		sessions, err := authredis.NewSessionStore(client, authredis.WithKeyPrefix(cfg.Redis.KeyPrefix))
		if err != nil {
			b.close()
			return nil, err
		}
		b.sessions = sessions
	default:
		b.sessions = memory.NewSessionStore()
	}

	if cfg.Users.Backend == config.BackendPostgres && cfg.Sessions.Backend == config.BackendPostgres {
		b.transactor = postgres.NewTransactor(b.pool)
	}

	logger.Info("storage ready",
		"users_backend", cfg.Users.Backend,
		"sessions_backend", cfg.Sessions.Backend)
	return b, nil
}

// ready pings every remote store.
func (b *backends) ready(ctx context.Context) error {
	var errs []error
	if b.pool != nil {
		if err := b.pool.Ping(ctx); err != nil {
			errs = append(errs, oops.With("store", "postgres").Wrap(err))
		}
	}
	if b.redis != nil {
		if err := b.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, oops.With("store", "redis").Wrap(err))
		}
	}
	return errors.Join(errs...)
}

func (b *backends) close() {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			slog.Debug("error closing redis client", "error", err)
		}
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

// runAutoMigrate applies pending migrations.
func runAutoMigrate(databaseURL string, deps *Deps, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Debug("error closing migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	logger.Info("database migrations applied")
	return nil
}
