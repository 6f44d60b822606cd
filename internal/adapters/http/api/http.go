// Package api resolves every inbound request to exactly one handler.
//
// Precedence is an explicit ordered rule list (see NewServer): uploads,
// assets, api, health, metrics, root, then the catch-all. The first rule
// that claims a request answers it.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/klhresolve/backend/internal/adapters/http/site"
	"github.com/klhresolve/backend/pkg/logger"
	"github.com/klhresolve/backend/pkg/metrics"
)

// URL namespaces owned by the resolver.
const (
	PrefixAPI     = "/api"
	PrefixUploads = "/uploads"
	PathHealth    = "/health"
	PathRoot      = "/"
)

// Response messages.
const (
	msgRouteNotFound       = "Route not found"
	msgPageNotFound        = "Page not found"
	msgSomethingWentWrong  = "Something went wrong!"
	msgFrontendUnavailable = "Could not load frontend"
)

// Group is an API sub-router mounted at Prefix (e.g. "/api/auth"). Routes
// inside Router are declared relative to Prefix.
type Group struct {
	Prefix string
	Router chi.Router
}

// Config carries everything the resolver needs; it is built once at startup.
type Config struct {
	Logger         logger.Logger
	Uploads        *site.Dir
	Assets         *site.Dir
	Entry          *site.Entry
	Groups         []Group
	ServiceName    string
	ServiceVersion string
	// Development exposes error text in 500 responses.
	Development bool
	// MetricsPath serves Prometheus metrics; empty disables the rule.
	MetricsPath        string
	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	TrustProxy         bool
}

// Server wires the resolver and its middleware chain.
type Server struct {
	cfg      Config
	log      logger.Logger
	health   *HealthHandler
	resolver *Resolver
}

// NewServer creates the resolver with its fixed rule order.
func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.Named("api")
	}
	s := &Server{
		cfg:    cfg,
		log:    log,
		health: NewHealthHandler(),
	}

	catchAll := http.HandlerFunc(s.handleCatchAll)

	rules := []Rule{
		s.uploadsRule(),
		s.assetsRule(catchAll),
		s.apiRule(),
		NewRule("health", exactPath(PathHealth, true), s.health),
	}
	if cfg.MetricsPath != "" {
		rules = append(rules, NewRule("metrics", exactPath(cfg.MetricsPath, false),
			promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})))
	}
	rules = append(rules, NewRule("root", exactPath(PathRoot, false), http.HandlerFunc(s.handleRoot)))

	s.resolver = NewResolver(NewRule("catch_all", nil, catchAll), rules...)
	return s
}

// Resolver exposes the rule list, mostly for tests and diagnostics.
func (s *Server) Resolver() *Resolver { return s.resolver }

// Handler returns the resolver wrapped in the middleware chain. The error
// boundary sits below metrics and logging so faults are counted as 500s.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.resolver
	h = CORS(s.cfg.CORSAllowedOrigins)(h)
	h = Recover(s.log, s.cfg.Development)(h)
	h = MetricsMiddleware(h)
	h = AccessLog(s.log)(h)
	if s.cfg.TrustProxy {
		h = middleware.RealIP(h)
	}
	h = RequestID(h)
	return h
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type faultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   any    `json:"error"`
}

// rootFailureResponse intentionally has no success field.
type rootFailureResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Error   string `json:"error"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	_ = WriteJSON(w, status, v)
}

func writeRouteNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, statusResponse{Success: false, Message: msgRouteNotFound})
}
