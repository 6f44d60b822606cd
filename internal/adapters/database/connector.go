// Package database owns the process-wide Postgres pool.
//
// The pool is opened in the background so the HTTP listener never waits on
// it. Route groups ask the connector for the pool per request and treat
// ErrNotConnected as a transient condition.
package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klhresolve/backend/pkg/logger"
	"github.com/klhresolve/backend/pkg/metrics"
)

// Default connector configuration constants.
const (
	defaultMaxConns      = 10
	defaultMaxAttempts   = 5
	defaultRetryInterval = 5 * time.Second
	defaultPingTimeout   = 5 * time.Second
	maxConnLifetime      = time.Hour
)

// Status describes the connector lifecycle.
type Status string

// Connector states.
const (
	StatusDisabled     Status = "disabled"
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusFailed       Status = "failed"
	StatusDisconnected Status = "disconnected"
)

// Connector establishes and holds the shared pool.
type Connector struct {
	dsn           string
	maxConns      int32
	maxAttempts   int
	retryInterval time.Duration
	pingTimeout   time.Duration
	logger        logger.Logger

	mu      sync.RWMutex
	pool    *pgxpool.Pool
	status  Status
	lastErr error
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs a Connector with default configuration.
func New(opts ...Option) *Connector {
	c := &Connector{
		maxConns:      defaultMaxConns,
		maxAttempts:   defaultMaxAttempts,
		retryInterval: defaultRetryInterval,
		pingTimeout:   defaultPingTimeout,
		status:        StatusIdle,
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.Named("database")
	}
	if c.dsn == "" {
		c.status = StatusDisabled
	}
	return c
}

// Connect starts connecting in the background and returns immediately.
// Calling it more than once is a no-op.
func (c *Connector) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return
	}
	c.started = true

	if c.dsn == "" {
		c.logger.Warn(ctx, "database url not configured; running without a database")
		close(c.done)
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.status = StatusConnecting
	go c.run(ctx)
}

func (c *Connector) run(ctx context.Context) {
	defer close(c.done)

	cfg, err := pgxpool.ParseConfig(c.dsn)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidDSN, err)
		c.logger.Error(ctx, "database configuration rejected", logger.Error(err))
		c.setState(nil, StatusFailed, err)
		return
	}
	cfg.MaxConns = c.maxConns
	cfg.MaxConnLifetime = maxConnLifetime

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		pool, err := c.open(ctx, cfg)
		if err == nil {
			metrics.RecordDatabaseConnectAttempt("success")
			c.setState(pool, StatusConnected, nil)
			c.logger.Info(ctx, "database connected", logger.Int("attempt", attempt))
			return
		}

		metrics.RecordDatabaseConnectAttempt("failure")
		c.logger.Warn(ctx, "database connection attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", c.maxAttempts),
			logger.Error(err),
		)
		c.setState(nil, StatusConnecting, err)

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			c.setState(nil, StatusDisconnected, ctx.Err())
			return
		case <-time.After(c.retryInterval):
		}
	}

	c.mu.RLock()
	lastErr := c.lastErr
	c.mu.RUnlock()
	c.logger.Error(ctx, "database unavailable; giving up", logger.Error(lastErr))
	c.setState(nil, StatusFailed, lastErr)
}

func (c *Connector) open(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func (c *Connector) setState(pool *pgxpool.Pool, status Status, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool = pool
	c.status = status
	c.lastErr = err
	metrics.SetDatabaseUp(status == StatusConnected)
}

// Done is closed once the background attempt loop has finished.
func (c *Connector) Done() <-chan struct{} {
	return c.done
}

// Status reports the current connector state.
func (c *Connector) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Err returns the last connection error, if any.
func (c *Connector) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Pool returns the shared pool once connected.
func (c *Connector) Pool() (*pgxpool.Pool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.status == StatusDisabled:
		return nil, ErrDisabled
	case c.pool == nil:
		return nil, ErrNotConnected
	}
	return c.pool, nil
}

// Close stops pending attempts and releases the pool.
func (c *Connector) Close() {
	c.mu.Lock()
	cancel := c.cancel
	started := c.started
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if started {
		<-c.done
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	if c.status == StatusConnected || c.status == StatusConnecting {
		c.status = StatusDisconnected
	}
	metrics.SetDatabaseUp(false)
}
