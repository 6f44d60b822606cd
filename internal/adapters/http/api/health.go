package api

import (
	"net/http"
	"sync/atomic"
	"time"
)

// HealthHandler answers liveness checks. Timestamps it reports never repeat
// and never go backwards within a process, even across clock adjustments.
type HealthHandler struct {
	last atomic.Int64
	now  func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{now: time.Now}
}

type healthResponse struct {
	Healthy   bool  `json:"healthy"`
	Timestamp int64 `json:"timestamp"`
}

// Timestamp returns the next epoch-millisecond reading, strictly greater than
// any previously returned.
func (h *HealthHandler) Timestamp() int64 {
	now := h.now().UnixMilli()
	for {
		last := h.last.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if h.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Healthy: true, Timestamp: h.Timestamp()})
}
