package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables that steer loading itself.
const (
	EnvConfigFile = "KLH_CONFIG"
	EnvDotEnvFile = "KLH_ENV_FILE"
	envPrefix     = "KLH_"
	defaultDotEnv = ".env"
)

// platformKeys are the unprefixed variables hosting platforms set directly.
var platformKeys = map[string]string{
	"PORT":         "port",
	"NODE_ENV":     "node_env",
	"DATABASE_URL": "database_url",
}

// Load builds a Config by layering defaults, optional file, .env and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if KLH_CONFIG is set
//  3. unprefixed platform variables PORT, NODE_ENV, DATABASE_URL
//  4. env (prefix KLH_)
//
// A .env file (KLH_ENV_FILE, default ./.env) is merged into the process
// environment first and never overrides variables that are already set.
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	platform := env.Provider("", ".", func(s string) string {
		return platformKeys[s]
	})
	if err := k.Load(platform, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// KLH_MAX_BODY_BYTES -> max_body_bytes (flat keys matching koanf tags).
	prefixed := env.Provider(envPrefix, ".", func(s string) string {
		if s == EnvConfigFile || s == EnvDotEnvFile {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv(EnvDotEnvFile)
	explicit := path != ""
	if !explicit {
		path = defaultDotEnv
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrLoadEnvFile, path, err)
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidConfig, c.Port)
	case strings.TrimSpace(c.AppRoot) == "":
		return fmt.Errorf("%w: app_root must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.UploadsDir) == "":
		return fmt.Errorf("%w: uploads_dir must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.EntryDocument) == "":
		return fmt.Errorf("%w: entry_document must not be empty", ErrInvalidConfig)
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalidConfig)
	case c.DatabaseConnectAttempts < 1:
		return fmt.Errorf("%w: database_connect_attempts must be at least 1", ErrInvalidConfig)
	case c.DatabaseRetryIntervalMS < 0:
		return fmt.Errorf("%w: database_retry_interval_ms must not be negative", ErrInvalidConfig)
	case c.MetricsNamespace == "":
		return fmt.Errorf("%w: metrics_namespace must not be empty", ErrInvalidConfig)
	case c.MetricsRefreshIntervalMS <= 0:
		return fmt.Errorf("%w: metrics_refresh_interval_ms must be positive", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
