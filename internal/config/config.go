// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authd configuration from defaults, a YAML file,
// AUTHD_-prefixed environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/authd/internal/xdg"
)

// EnvPrefix is the prefix of environment overrides, e.g. AUTHD_SERVER_ADDR.
const EnvPrefix = "AUTHD_"

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Users    UsersConfig    `koanf:"users"`
	Sessions SessionsConfig `koanf:"sessions"`
	Hasher   HasherConfig   `koanf:"hasher"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CookieSecure    bool          `koanf:"cookie_secure"`
	CookieSameSite  string        `koanf:"cookie_same_site"`
	GinMode         string        `koanf:"gin_mode"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string `koanf:"url"`
	MaxConns        int32  `koanf:"max_conns"`
	ConnectAttempts uint64 `koanf:"connect_attempts"`

	// AutoMigrate applies pending migrations when serve starts.
	AutoMigrate bool `koanf:"auto_migrate"`
}

// RedisConfig configures the Redis session backend.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// UsersConfig selects the account backend.
type UsersConfig struct {
	Backend string `koanf:"backend"`
}

// SessionsConfig selects the session backend and sweeper cadence.
type SessionsConfig struct {
	Backend string `koanf:"backend"`

	// SweepInterval of zero disables the background sweeper.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// HasherConfig selects the password KDF and its cost.
type HasherConfig struct {
	Algorithm     string `koanf:"algorithm"`
	Argon2Time    uint32 `koanf:"argon2_time"`
	Argon2Memory  uint32 `koanf:"argon2_memory"`
	Argon2Threads uint8  `koanf:"argon2_threads"`
	BcryptCost    int    `koanf:"bcrypt_cost"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig configures the observability server. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Defaults returns the flattened default configuration.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":             ":8080",
		"server.request_timeout":  5 * time.Second,
		"server.shutdown_timeout": 10 * time.Second,
		"server.cookie_secure":    false,
		"server.cookie_same_site": "lax",
		"server.gin_mode":         "release",

		"database.url":              "",
		"database.max_conns":        int32(10),
		"database.connect_attempts": uint64(5),
		"database.auto_migrate":     true,

		"redis.addr":       "localhost:6379",
		"redis.password":   "",
		"redis.db":         0,
		"redis.key_prefix": "authd:session:",

		"users.backend":           BackendPostgres,
		"sessions.backend":        BackendPostgres,
		"sessions.sweep_interval": time.Hour,

		"hasher.algorithm":      "argon2id",
		"hasher.argon2_time":    uint32(1),
		"hasher.argon2_memory":  uint32(64 * 1024),
		"hasher.argon2_threads": uint8(4),
		"hasher.bcrypt_cost":    10,

		"log.level":  "info",
		"log.format": "json",

		"metrics.addr": "127.0.0.1:9100",
	}
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// ConfigFile is an explicit YAML path. When empty the XDG default is
	// used if it exists.
	ConfigFile string
	// EnvFile is a dotenv file loaded into the process environment when present.
	EnvFile string
	// Flags are applied last. Only flags the user changed override other layers.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to config keys. Flags absent from the map are ignored.
	FlagKeys map[string]string
}

// Load builds a Config from every layer and validates it.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_INVALID").With("file", opts.EnvFile).Wrap(err)
		}
	}

	k := koanf.New(".")
	for key, val := range Defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	path, explicit := opts.ConfigFile, opts.ConfigFile != ""
	if !explicit {
		path = xdg.ConfigFile()
	}
	if err := loadFile(k, path, explicit); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("layer", "env").Wrap(err)
	}
	if k.String("database.url") == "" {
		if url := os.Getenv("DATABASE_URL"); url != "" {
			_ = k.Set("database.url", url) //nolint:errcheck // Set on a string key cannot fail
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := opts.FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("layer", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return oops.Code("CONFIG_INVALID").With("file", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_INVALID").With("file", path).Wrap(err)
	}
	return nil
}

// envKey maps AUTHD_SERVER_REQUEST_TIMEOUT to server.request_timeout.
// Only the first underscore after the prefix separates section from field.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}
