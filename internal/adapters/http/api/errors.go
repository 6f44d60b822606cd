package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/klhresolve/backend/pkg/logger"
	"github.com/klhresolve/backend/pkg/metrics"
)

// Sentinel kinds for API errors.
var (
	ErrHandlerPanic = errors.New("handler panic")
	ErrHandler      = errors.New("handler failed")
)

// HandlerFunc is an http handler that may fail. A returned error is turned
// into the shared 500 response by the error boundary.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts fn to http.Handler.
func Handle(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			Fail(w, r, err)
		}
	})
}

type boundaryKey struct{}

// boundary is the per-request error responder installed by Recover.
type boundary struct {
	logger      logger.Logger
	development bool
	tracker     *responseWriter
	failed      bool
}

func boundaryFrom(ctx context.Context) *boundary {
	b, _ := ctx.Value(boundaryKey{}).(*boundary)
	return b
}

// Fail reports err through the error boundary of the request. Only the first
// failure of a request produces a response, and nothing is written when the
// handler already committed its status line.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	b := boundaryFrom(r.Context())
	if b == nil {
		// Not wrapped by Recover: answer without detail.
		b = &boundary{logger: logger.Named("api")}
	}
	b.fail(w, r, err, nil)
}

func (b *boundary) fail(w http.ResponseWriter, r *http.Request, err error, stack []byte) {
	ctx := r.Context()
	fields := []logger.Field{
		logger.String("method", r.Method),
		logger.String("path", r.URL.Path),
		logger.Error(err),
	}
	if stack != nil {
		fields = append(fields, logger.String("stack", string(stack)))
	}
	b.logger.Error(ctx, "unhandled handler error", fields...)
	metrics.RecordHandlerFault()

	if b.failed || (b.tracker != nil && b.tracker.wroteHeader) {
		return
	}
	b.failed = true

	var detail any = struct{}{}
	if b.development {
		detail = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, faultResponse{
		Success: false,
		Message: msgSomethingWentWrong,
		Error:   detail,
	})
}

// Recover is the single fail-safe boundary. It converts panics below it, and
// errors passed to Fail, into one structured 500 response.
func Recover(log logger.Logger, development bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := wrapResponseWriter(w)
			b := &boundary{logger: log, development: development, tracker: tw}
			r = r.WithContext(context.WithValue(r.Context(), boundaryKey{}, b))

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rec)
				}
				err, ok := rec.(error)
				if ok {
					err = fmt.Errorf("%w: %w", ErrHandlerPanic, err)
				} else {
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
				}
				b.fail(tw, r, err, debug.Stack())
			}()

			next.ServeHTTP(tw, r)
		})
	}
}
