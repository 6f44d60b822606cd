// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file, a .env file and the environment.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Runtime modes recognised by NODE_ENV.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Host and Port form the HTTP listen address.
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// NodeEnv selects error-detail verbosity; only "development" exposes error text.
	NodeEnv string `koanf:"node_env"`

	// AppRoot is the application directory holding static assets and the entry document.
	AppRoot string `koanf:"app_root"`

	// UploadsDir is served under /uploads. Relative paths resolve against AppRoot.
	UploadsDir string `koanf:"uploads_dir"`

	// EntryDocument is the SPA entry file, relative to AppRoot.
	EntryDocument string `koanf:"entry_document"`

	// ServiceName and ServiceVersion identify the API in degraded root responses.
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`

	// CORSAllowedOrigins lists origins allowed by the CORS middleware.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// MaxBodyBytes caps request bodies under /api.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// TrustProxy enables X-Forwarded-For / X-Real-IP client addresses.
	TrustProxy bool `koanf:"trust_proxy"`

	// MetricsPath exposes Prometheus metrics; empty (the default) disables the
	// route so the path stays with the SPA.
	MetricsPath string `koanf:"metrics_path"`

	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsRefreshIntervalMS is how often runtime gauges are sampled.
	MetricsRefreshIntervalMS int `koanf:"metrics_refresh_interval_ms"`

	// DatabaseURL is the Postgres DSN; empty disables the connector.
	DatabaseURL string `koanf:"database_url"`

	// DatabaseMaxConns bounds the pool size.
	DatabaseMaxConns int `koanf:"database_max_conns"`

	// DatabaseConnectAttempts bounds background connection attempts.
	DatabaseConnectAttempts int `koanf:"database_connect_attempts"`

	// DatabaseRetryIntervalMS waits between failed attempts.
	DatabaseRetryIntervalMS int `koanf:"database_retry_interval_ms"`

	// ShutdownTimeoutMS bounds graceful HTTP shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Host:                     "",
		Port:                     5000,
		NodeEnv:                  ModeProduction,
		AppRoot:                  ".",
		UploadsDir:               "uploads",
		EntryDocument:            "index.html",
		ServiceName:              "KLHResolve Backend API",
		ServiceVersion:           "1.0.0",
		CORSAllowedOrigins:       []string{"*"},
		MaxBodyBytes:             100 << 10,
		TrustProxy:               false,
		MetricsPath:              "",
		MetricsNamespace:         "klhresolve",
		MetricsRefreshIntervalMS: 10000,
		DatabaseURL:              "",
		DatabaseMaxConns:         10,
		DatabaseConnectAttempts:  5,
		DatabaseRetryIntervalMS:  5000,
		ShutdownTimeoutMS:        30000,
	}
}

// Addr returns the listen address, e.g. ":5000".
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsDevelopment reports whether error details may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return c.NodeEnv == ModeDevelopment
}

// UploadsPath resolves the uploads directory against AppRoot.
func (c *Config) UploadsPath() string {
	if filepath.IsAbs(c.UploadsDir) {
		return filepath.Clean(c.UploadsDir)
	}
	return filepath.Join(c.AppRoot, c.UploadsDir)
}

// DatabaseRetryInterval returns the retry wait as a duration.
func (c *Config) DatabaseRetryInterval() time.Duration {
	return time.Duration(c.DatabaseRetryIntervalMS) * time.Millisecond
}

// MetricsRefreshInterval returns the gauge sampling interval as a duration.
func (c *Config) MetricsRefreshInterval() time.Duration {
	return time.Duration(c.MetricsRefreshIntervalMS) * time.Millisecond
}

// ShutdownTimeout returns the graceful shutdown bound as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

func (c *Config) normalize() {
	c.NodeEnv = strings.TrimSpace(c.NodeEnv)
	c.MetricsPath = strings.TrimSpace(c.MetricsPath)
	c.MetricsNamespace = strings.TrimSpace(c.MetricsNamespace)
	if c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/") {
		c.MetricsPath = "/" + c.MetricsPath
	}
}
