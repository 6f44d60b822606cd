package api_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/klhresolve/backend/internal/adapters/http/api"
	"github.com/klhresolve/backend/internal/adapters/http/site"
	"github.com/klhresolve/backend/pkg/logger"
)

const (
	entryHTML = "<!doctype html><title>KLHResolve</title>"
	maxBody   = 100 << 10
)

func init() {
	_ = logger.Init(logger.WithOutput(io.Discard))
}

type fixture struct {
	root    string
	handler http.Handler
	server  *api.Server
}

func authRouter() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		_ = api.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "group": "auth"})
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	r.Method(http.MethodGet, "/fail", api.Handle(func(http.ResponseWriter, *http.Request) error {
		return errors.New("lookup failed")
	}))
	r.Get("/late", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("after commit")
	})
	r.Method(http.MethodPost, "/echo", api.Handle(func(w http.ResponseWriter, r *http.Request) error {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		return api.WriteJSON(w, http.StatusOK, map[string]any{"bytes": len(body)})
	}))
	return r
}

func newFixture(t *testing.T, development bool) *fixture {
	t.Helper()
	root := t.TempDir()
	mustWrite(t, root, "index.html", entryHTML)
	mustWrite(t, root, "static/app.js", "console.log('klh')")
	mustWrite(t, root, ".env", "SECRET=1")
	mustWrite(t, root, "uploads/evidence.txt", "pothole on main street")
	mustWrite(t, root, "uploads/.hidden", "nope")

	users := chi.NewRouter()
	users.Post("/", func(w http.ResponseWriter, _ *http.Request) {
		_ = api.WriteJSON(w, http.StatusCreated, map[string]any{"success": true})
	})

	srv := api.NewServer(api.Config{
		Logger:  logger.Named("api-test"),
		Uploads: site.NewDir(filepath.Join(root, "uploads"), "uploads"),
		Assets:  site.NewDir(root, "assets", "index.html"),
		Entry:   site.NewEntry(root, "index.html"),
		Groups: []api.Group{
			{Prefix: "/api/auth", Router: authRouter()},
			{Prefix: "/api/complaints", Router: chi.NewRouter()},
			{Prefix: "/api/users", Router: users},
		},
		ServiceName:        "KLHResolve Backend API",
		ServiceVersion:     "1.0.0",
		Development:        development,
		MetricsPath:        "/metrics",
		CORSAllowedOrigins: []string{"*"},
		MaxBodyBytes:       maxBody,
	})
	return &fixture{root: root, handler: srv.Handler(), server: srv}
}

func mustWrite(t *testing.T, root, rel, content string) {
	t.Helper()
	name := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func (f *fixture) post(target string, size int) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(strings.Repeat("x", size)))
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
	return body
}

func shouldBeRouteNotFound(rec *httptest.ResponseRecorder) {
	So(rec.Code, ShouldEqual, http.StatusNotFound)
	body := decode(rec)
	So(body["success"], ShouldEqual, false)
	So(body["message"], ShouldEqual, "Route not found")
}

func TestRuleOrder(t *testing.T) {
	Convey("Given a server", t, func() {
		f := newFixture(t, false)

		Convey("Then rules are evaluated in a fixed order", func() {
			So(f.server.Resolver().RuleNames(), ShouldResemble, []string{
				"uploads", "assets", "api", "health", "metrics", "root", "catch_all",
			})
		})
	})
}

func TestUploads(t *testing.T) {
	Convey("Given files in the uploads directory", t, func() {
		f := newFixture(t, false)

		Convey("When an existing upload is requested", func() {
			rec := f.do(http.MethodGet, "/uploads/evidence.txt")

			Convey("Then it is served verbatim", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldEqual, "pothole on main street")
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "text/plain")
			})
		})

		Convey("Then a missing upload is a JSON 404, never the entry document", func() {
			rec := f.do(http.MethodGet, "/uploads/missing.png")
			shouldBeRouteNotFound(rec)
			So(rec.Body.String(), ShouldNotContainSubstring, entryHTML)
		})

		Convey("Then the directory itself is not listed", func() {
			shouldBeRouteNotFound(f.do(http.MethodGet, "/uploads"))
			shouldBeRouteNotFound(f.do(http.MethodGet, "/uploads/"))
		})

		Convey("Then hidden files and non-read methods are refused", func() {
			shouldBeRouteNotFound(f.do(http.MethodGet, "/uploads/.hidden"))
			shouldBeRouteNotFound(f.do(http.MethodDelete, "/uploads/evidence.txt"))
		})
	})
}

func TestAssets(t *testing.T) {
	Convey("Given files under the application root", t, func() {
		f := newFixture(t, false)

		Convey("Then assets are served with an inferred content type", func() {
			rec := f.do(http.MethodGet, "/static/app.js")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldEqual, "console.log('klh')")
			So(rec.Header().Get("Content-Type"), ShouldContainSubstring, "javascript")
		})

		Convey("Then the entry document is never served as an asset", func() {
			req := httptest.NewRequest(http.MethodGet, "/index.html", nil)
			name, _ := f.server.Resolver().Resolve(req)
			So(name, ShouldEqual, "catch_all")

			rec := f.do(http.MethodGet, "/index.html")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldEqual, entryHTML)
		})

		Convey("Then dotfiles fall through to the entry document", func() {
			rec := f.do(http.MethodGet, "/.env")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldEqual, entryHTML)
		})
	})
}

func TestAPIRouting(t *testing.T) {
	Convey("Given mounted API groups", t, func() {
		f := newFixture(t, false)

		Convey("Then a group route answers", func() {
			rec := f.do(http.MethodGet, "/api/auth/status")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode(rec)["group"], ShouldEqual, "auth")
		})

		Convey("Then a group root route answers", func() {
			rec := f.do(http.MethodPost, "/api/users")
			So(rec.Code, ShouldEqual, http.StatusCreated)
		})

		Convey("Then unknown API paths are JSON 404s", func() {
			shouldBeRouteNotFound(f.do(http.MethodGet, "/api/unknown"))
			shouldBeRouteNotFound(f.do(http.MethodGet, "/api"))
			shouldBeRouteNotFound(f.do(http.MethodGet, "/api/auth/nope"))
			shouldBeRouteNotFound(f.do(http.MethodGet, "/api/complaints/1"))
			shouldBeRouteNotFound(f.do(http.MethodGet, "/apiary"))
		})

		Convey("Then a wrong method falls through to the catch-all", func() {
			shouldBeRouteNotFound(f.do(http.MethodPost, "/api/auth/status"))
		})

		Convey("Then HEAD is answered by GET routes", func() {
			req := httptest.NewRequest(http.MethodHead, "/api/auth/status", nil)
			name, _ := f.server.Resolver().Resolve(req)
			So(name, ShouldEqual, "api")

			rec := f.do(http.MethodHead, "/api/auth/status")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
		})

		Convey("Then bodies within the limit reach the handler", func() {
			rec := f.post("/api/auth/echo", 512)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(decode(rec)["bytes"], ShouldEqual, float64(512))
		})

		Convey("Then oversized bodies end at the error boundary", func() {
			rec := f.post("/api/auth/echo", maxBody+1)
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(rec)["message"], ShouldEqual, "Something went wrong!")
		})
	})
}

func TestHealth(t *testing.T) {
	Convey("Given a server", t, func() {
		f := newFixture(t, false)

		Convey("When health is polled repeatedly", func() {
			first := decode(f.do(http.MethodGet, "/health"))
			second := decode(f.do(http.MethodGet, "/health"))

			Convey("Then it reports healthy with increasing timestamps", func() {
				So(first["healthy"], ShouldEqual, true)
				So(second["timestamp"].(float64), ShouldBeGreaterThan, first["timestamp"].(float64))
			})
		})

		Convey("Then a trailing slash is tolerated", func() {
			So(f.do(http.MethodGet, "/health/").Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestRootAndFallback(t *testing.T) {
	Convey("Given an application root with an entry document", t, func() {
		f := newFixture(t, false)

		Convey("Then / serves the entry document", func() {
			rec := f.do(http.MethodGet, "/")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldEqual, entryHTML)
		})

		Convey("Then client-side routes serve the entry document", func() {
			rec := f.do(http.MethodGet, "/complaints/42/edit")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldEqual, entryHTML)
		})

		Convey("When the entry document is missing", func() {
			So(os.Remove(filepath.Join(f.root, "index.html")), ShouldBeNil)

			Convey("Then / degrades to the service identity", func() {
				rec := f.do(http.MethodGet, "/")
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				body := decode(rec)
				So(body["message"], ShouldEqual, "KLHResolve Backend API")
				So(body["version"], ShouldEqual, "1.0.0")
				So(body["error"], ShouldEqual, "Could not load frontend")
				So(body, ShouldNotContainKey, "success")
			})

			Convey("Then client-side routes answer Page not found", func() {
				rec := f.do(http.MethodGet, "/dashboard")
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				body := decode(rec)
				So(body["success"], ShouldEqual, false)
				So(body["message"], ShouldEqual, "Page not found")
			})
		})
	})
}

func TestErrorBoundary(t *testing.T) {
	Convey("Given a production server", t, func() {
		f := newFixture(t, false)

		Convey("When a handler panics", func() {
			rec := f.do(http.MethodGet, "/api/auth/boom")

			Convey("Then one structured 500 is written without detail", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				body := decode(rec)
				So(body["success"], ShouldEqual, false)
				So(body["message"], ShouldEqual, "Something went wrong!")
				So(body["error"], ShouldResemble, map[string]any{})
			})
		})

		Convey("When a handler already committed its status", func() {
			rec := f.do(http.MethodGet, "/api/auth/late")

			Convey("Then the boundary writes nothing more", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(rec.Body.String(), ShouldNotContainSubstring, "Something went wrong!")
			})
		})
	})

	Convey("Given a development server", t, func() {
		f := newFixture(t, true)

		Convey("Then panic text is exposed", func() {
			rec := f.do(http.MethodGet, "/api/auth/boom")
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(rec)["error"], ShouldContainSubstring, "kaboom")
		})

		Convey("Then the body limit error is exposed", func() {
			rec := f.post("/api/auth/echo", maxBody+1)
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(rec)["error"], ShouldContainSubstring, "request body too large")
		})

		Convey("Then returned errors are exposed", func() {
			rec := f.do(http.MethodGet, "/api/auth/fail")
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(rec)["error"], ShouldEqual, "lookup failed")
		})
	})
}

func TestMiddleware(t *testing.T) {
	Convey("Given a server", t, func() {
		f := newFixture(t, false)

		Convey("Then cross-origin requests are allowed", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("Origin", "http://localhost:3000")
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})

		Convey("Then preflights are answered before routing", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/complaints", nil)
			req.Header.Set("Origin", "http://localhost:3000")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNoContent)
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			So(rec.Header().Get("Access-Control-Allow-Methods"), ShouldEqual, http.MethodPost)
			So(rec.Body.Len(), ShouldEqual, 0)
		})

		Convey("Then bare OPTIONS requests get an empty 204", func() {
			for _, target := range []string{"/dashboard", "/api/auth/status", "/"} {
				req := httptest.NewRequest(http.MethodOptions, target, nil)
				req.Header.Set("Origin", "http://localhost:3000")
				rec := httptest.NewRecorder()
				f.handler.ServeHTTP(rec, req)
				So(rec.Code, ShouldEqual, http.StatusNoContent)
				So(rec.Body.Len(), ShouldEqual, 0)
			}
		})

		Convey("Then every response carries a request id", func() {
			rec := f.do(http.MethodGet, "/health")
			So(rec.Header().Get(api.HeaderRequestID), ShouldNotBeEmpty)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set(api.HeaderRequestID, "client-supplied")
			rec = httptest.NewRecorder()
			f.handler.ServeHTTP(rec, req)
			So(rec.Header().Get(api.HeaderRequestID), ShouldEqual, "client-supplied")
		})

		Convey("Then metrics are exposed", func() {
			f.do(http.MethodGet, "/health")
			rec := f.do(http.MethodGet, "/metrics")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "klhresolve_backend_http_requests_total")
			So(strings.Contains(rec.Body.String(), `rule="health"`), ShouldBeTrue)
		})
	})
}
