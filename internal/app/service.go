// Package service assembles the HTTP resolver and its collaborators from
// configuration. A Service replaces process-wide globals: everything the
// handlers need is built once here and passed explicitly.
package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/klhresolve/backend/internal/adapters/database"
	"github.com/klhresolve/backend/internal/adapters/http/api"
	"github.com/klhresolve/backend/internal/adapters/http/routes"
	"github.com/klhresolve/backend/internal/adapters/http/site"
	"github.com/klhresolve/backend/internal/config"
	"github.com/klhresolve/backend/pkg/logger"
)

// Service owns the database connector and the HTTP handler tree.
type Service struct {
	mu sync.RWMutex

	cfg       *config.Config
	db        *database.Connector
	server    *api.Server
	logger    logger.Logger
	started   bool
	startedAt time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConnector replaces the connector built from configuration.
func WithConnector(db *database.Connector) Option {
	return func(s *Service) {
		if db != nil {
			s.db = db
		}
	}
}

// New builds the service. A nil cfg uses config defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.db == nil {
		s.db = database.New(
			database.WithDSN(cfg.DatabaseURL),
			database.WithMaxConns(cfg.DatabaseMaxConns),
			database.WithMaxAttempts(cfg.DatabaseConnectAttempts),
			database.WithRetryInterval(cfg.DatabaseRetryInterval()),
		)
	}

	s.server = api.NewServer(api.Config{
		Logger:             logger.Named("api"),
		Uploads:            site.NewDir(cfg.UploadsPath(), "uploads"),
		Assets:             site.NewDir(cfg.AppRoot, "assets", cfg.EntryDocument),
		Entry:              site.NewEntry(cfg.AppRoot, cfg.EntryDocument),
		Groups:             routes.Groups(s.db),
		ServiceName:        cfg.ServiceName,
		ServiceVersion:     cfg.ServiceVersion,
		Development:        cfg.IsDevelopment(),
		MetricsPath:        cfg.MetricsPath,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		TrustProxy:         cfg.TrustProxy,
	})

	return s
}

// Start begins connecting to the database in the background. It never
// waits for the connection, so the listener can start right away.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.db.Connect(ctx)
	s.started = true
	s.startedAt = time.Now()

	s.logger.Info(ctx, "service started",
		logger.String("app_root", s.cfg.AppRoot),
		logger.String("uploads", s.cfg.UploadsPath()),
		logger.String("node_env", s.cfg.NodeEnv),
		logger.String("database", string(s.db.Status())),
	)
	return nil
}

// Stop releases the database connection.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.db.Close()
	s.started = false
	s.logger.Info(context.Background(), "service stopped")
}

// Handler returns the root HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.server.Handler()
}

// Connector exposes the database connector.
func (s *Service) Connector() *database.Connector {
	return s.db
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":  s.started,
		"database": string(s.db.Status()),
		"rules":    s.server.Resolver().RuleNames(),
	}
	if s.started {
		stats["uptime"] = time.Since(s.startedAt).String()
	}
	return stats
}
