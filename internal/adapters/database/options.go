package database

import (
	"time"

	"github.com/klhresolve/backend/pkg/logger"
)

// Option applies a configuration option to the Connector.
type Option func(*Connector)

// WithDSN sets the Postgres connection string. Empty disables the connector.
func WithDSN(dsn string) Option {
	return func(c *Connector) {
		c.dsn = dsn
	}
}

// WithMaxConns bounds the pool size.
func WithMaxConns(n int) Option {
	return func(c *Connector) {
		if n > 0 {
			c.maxConns = int32(n)
		}
	}
}

// WithMaxAttempts bounds the number of background connection attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Connector) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryInterval sets the wait between failed attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Connector) {
		if d >= 0 {
			c.retryInterval = d
		}
	}
}

// WithPingTimeout bounds a single connectivity check.
func WithPingTimeout(d time.Duration) Option {
	return func(c *Connector) {
		if d > 0 {
			c.pingTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the connector.
func WithLogger(l logger.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}
