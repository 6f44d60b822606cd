package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/klhresolve/backend/pkg/logger"
	"github.com/klhresolve/backend/pkg/metrics"
)

var errNoEntry = errors.New("entry document not configured")

// Rule claims a request by returning the handler that must answer it.
type Rule interface {
	Name() string
	Match(r *http.Request) (http.Handler, bool)
}

// MatchFunc picks a handler for r, or reports false to let later rules try.
type MatchFunc func(r *http.Request) (http.Handler, bool)

type rule struct {
	name  string
	match MatchFunc
}

func (r rule) Name() string                                 { return r.name }
func (r rule) Match(req *http.Request) (http.Handler, bool) { return r.match(req) }

// NewMatchRule returns a rule backed by match.
func NewMatchRule(name string, match MatchFunc) Rule {
	return rule{name: name, match: match}
}

// NewRule returns a rule that answers with h whenever pred holds. A nil
// predicate matches every request.
func NewRule(name string, pred func(r *http.Request) bool, h http.Handler) Rule {
	return rule{name: name, match: func(r *http.Request) (http.Handler, bool) {
		if pred != nil && !pred(r) {
			return nil, false
		}
		return h, true
	}}
}

// Resolver evaluates rules in order; the fallback answers whatever is left.
type Resolver struct {
	rules    []Rule
	fallback Rule
}

// NewResolver returns a resolver over rules, highest precedence first.
func NewResolver(fallback Rule, rules ...Rule) *Resolver {
	return &Resolver{rules: rules, fallback: fallback}
}

// RuleNames lists rule names in evaluation order, fallback last.
func (rs *Resolver) RuleNames() []string {
	names := make([]string, 0, len(rs.rules)+1)
	for _, r := range rs.rules {
		names = append(names, r.Name())
	}
	return append(names, rs.fallback.Name())
}

// Resolve returns the name and handler of the first rule claiming r.
func (rs *Resolver) Resolve(r *http.Request) (string, http.Handler) {
	for _, rl := range rs.rules {
		if h, ok := rl.Match(r); ok {
			return rl.Name(), h
		}
	}
	h, _ := rs.fallback.Match(r)
	return rs.fallback.Name(), h
}

func (rs *Resolver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, h := rs.Resolve(r)
	setRule(r.Context(), name)
	h.ServeHTTP(w, r)
}

func isRead(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// hasPathPrefix reports whether p is prefix itself or lies below it.
func hasPathPrefix(p, prefix string) bool {
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || p[len(prefix)] == '/' || strings.HasSuffix(prefix, "/")
}

// exactPath matches GET/HEAD on p, optionally tolerating a trailing slash.
func exactPath(p string, trailingSlash bool) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if !isRead(r) {
			return false
		}
		got := r.URL.Path
		return got == p || (trailingSlash && got == p+"/")
	}
}

// routePath mirrors chi's choice between the raw and decoded path.
func routePath(r *http.Request) string {
	if r.URL.RawPath != "" {
		return r.URL.RawPath
	}
	return r.URL.Path
}

func (s *Server) uploadsRule() Rule {
	return NewMatchRule("uploads", func(r *http.Request) (http.Handler, bool) {
		if !hasPathPrefix(r.URL.Path, PrefixUploads) {
			return nil, false
		}
		return http.HandlerFunc(s.handleUpload), true
	})
}

// handleUpload never falls through: anything it cannot serve is a 404.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Uploads == nil || !isRead(r) {
		writeRouteNotFound(w)
		return
	}
	name, err := s.cfg.Uploads.Lookup(strings.TrimPrefix(r.URL.Path, PrefixUploads))
	if err == nil {
		err = s.cfg.Uploads.ServeFile(w, r, name)
	}
	if err != nil {
		s.log.Debug(r.Context(), "upload not served", logger.String("path", r.URL.Path), logger.Error(err))
		writeRouteNotFound(w)
	}
}

func (s *Server) assetsRule(fallback http.Handler) Rule {
	return NewMatchRule("assets", func(r *http.Request) (http.Handler, bool) {
		if s.cfg.Assets == nil || !isRead(r) {
			return nil, false
		}
		name, err := s.cfg.Assets.Lookup(r.URL.Path)
		if err != nil {
			return nil, false
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := s.cfg.Assets.ServeFile(w, r, name); err != nil {
				// Removed between lookup and open.
				fallback.ServeHTTP(w, r)
			}
		}), true
	})
}

// apiRule dispatches to the first group whose router has a route for the
// request. HEAD is answered by GET routes. Unclaimed /api paths are left to
// the catch-all.
func (s *Server) apiRule() Rule {
	type mounted struct {
		prefix  string
		router  chi.Router
		handler http.Handler
	}
	groups := make([]mounted, 0, len(s.cfg.Groups))
	for _, g := range s.cfg.Groups {
		outer := chi.NewRouter()
		outer.Use(middleware.GetHead)
		if s.cfg.MaxBodyBytes > 0 {
			outer.Use(middleware.RequestSize(s.cfg.MaxBodyBytes))
		}
		outer.Mount("/", g.Router)
		groups = append(groups, mounted{
			prefix:  g.Prefix,
			router:  g.Router,
			handler: http.StripPrefix(g.Prefix, outer),
		})
	}

	return NewMatchRule("api", func(r *http.Request) (http.Handler, bool) {
		p := routePath(r)
		if !hasPathPrefix(p, PrefixAPI) {
			return nil, false
		}
		for _, g := range groups {
			if !hasPathPrefix(p, g.prefix) {
				continue
			}
			rest := strings.TrimPrefix(p, g.prefix)
			if rest == "" {
				rest = "/"
			}
			if routeMatches(g.router, r.Method, rest) {
				return g.handler, true
			}
		}
		return nil, false
	})
}

func routeMatches(routes chi.Routes, method, path string) bool {
	if routes.Match(chi.NewRouteContext(), method, path) {
		return true
	}
	return method == http.MethodHead && routes.Match(chi.NewRouteContext(), http.MethodGet, path)
}

func (s *Server) serveEntry(w http.ResponseWriter, r *http.Request) error {
	if s.cfg.Entry == nil {
		return errNoEntry
	}
	return s.cfg.Entry.Serve(w, r)
}

// handleRoot serves the entry document or a degraded identity payload.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if err := s.serveEntry(w, r); err != nil {
		s.entryFailed(r.Context(), "root", err)
		writeJSON(w, http.StatusInternalServerError, rootFailureResponse{
			Message: s.cfg.ServiceName,
			Version: s.cfg.ServiceVersion,
			Error:   msgFrontendUnavailable,
		})
	}
}

// handleCatchAll answers API and upload paths with a JSON 404 and every
// other path with the entry document so client-side routing works.
func (s *Server) handleCatchAll(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	if strings.HasPrefix(p, PrefixAPI) || strings.HasPrefix(p, PrefixUploads) {
		writeRouteNotFound(w)
		return
	}
	if err := s.serveEntry(w, r); err != nil {
		s.entryFailed(r.Context(), "catch_all", err)
		writeJSON(w, http.StatusNotFound, statusResponse{Success: false, Message: msgPageNotFound})
	}
}

func (s *Server) entryFailed(ctx context.Context, ruleName string, err error) {
	metrics.RecordEntryDocumentFailure(ruleName)
	s.log.Error(ctx, "error serving entry document",
		logger.String("rule", ruleName),
		logger.Error(err),
	)
}
