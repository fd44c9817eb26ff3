// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"net/http"
	"slices"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

func invalid(key string, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return invalid("server.addr", "server address is required")
	}
	if c.Server.RequestTimeout <= 0 {
		return invalid("server.request_timeout", "request timeout must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return invalid("server.shutdown_timeout", "shutdown timeout must be positive")
	}
	if _, err := c.Server.SameSite(); err != nil {
		return err
	}
	if !slices.Contains([]string{"debug", "release", "test"}, c.Server.GinMode) {
		return invalid("server.gin_mode", "gin mode must be debug, release or test, got %q", c.Server.GinMode)
	}

	if !slices.Contains([]string{BackendPostgres, BackendMemory}, c.Users.Backend) {
		return invalid("users.backend", "unsupported users backend %q", c.Users.Backend)
	}
	if !slices.Contains([]string{BackendPostgres, BackendRedis, BackendMemory}, c.Sessions.Backend) {
		return invalid("sessions.backend", "unsupported sessions backend %q", c.Sessions.Backend)
	}
	// sessions.user_id references accounts(id), so postgres sessions need postgres accounts.
	if c.Sessions.Backend == BackendPostgres && c.Users.Backend != BackendPostgres {
		return invalid("sessions.backend", "postgres sessions require the postgres users backend, got users backend %q", c.Users.Backend)
	}
	if c.Sessions.SweepInterval < 0 {
		return invalid("sessions.sweep_interval", "sweep interval cannot be negative")
	}
	if c.NeedsPostgres() && c.Database.URL == "" {
		return invalid("database.url", "database url is required for the postgres backend")
	}
	if c.Sessions.Backend == BackendRedis && c.Redis.Addr == "" {
		return invalid("redis.addr", "redis address is required for the redis backend")
	}

	switch c.Hasher.Algorithm {
	case "argon2id":
		if c.Hasher.Argon2Time == 0 || c.Hasher.Argon2Threads == 0 {
			return invalid("hasher", "argon2id time and threads must be positive")
		}
	case "bcrypt":
		if c.Hasher.BcryptCost < bcrypt.MinCost || c.Hasher.BcryptCost > bcrypt.MaxCost {
			return invalid("hasher.bcrypt_cost", "bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
		}
	default:
		return invalid("hasher.algorithm", "unsupported hash algorithm %q", c.Hasher.Algorithm)
	}

	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", "log format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// NeedsPostgres reports whether any configured backend uses PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.Users.Backend == BackendPostgres || c.Sessions.Backend == BackendPostgres
}

// SameSite parses CookieSameSite.
func (s ServerConfig) SameSite() (http.SameSite, error) {
	switch s.CookieSameSite {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, invalid("server.cookie_same_site", "same-site must be lax, strict or none, got %q", s.CookieSameSite)
	}
}
