package site

import (
	"net/http"
	"path/filepath"

	"github.com/klhresolve/backend/pkg/metrics"
)

// Entry is the SPA entry document (index.html). It is only ever served on
// request of the resolver, never matched as a plain asset.
type Entry struct {
	path string
}

// NewEntry returns the entry document at root/name.
func NewEntry(root, name string) *Entry {
	return &Entry{path: filepath.Join(root, name)}
}

// Path returns the document's location on disk.
func (e *Entry) Path() string { return e.path }

// Serve writes the entry document. On error nothing has been written and the
// caller chooses the fallback response.
func (e *Entry) Serve(w http.ResponseWriter, r *http.Request) error {
	if err := serveFile(w, r, e.path); err != nil {
		return err
	}
	metrics.RecordFileServed("entry")
	return nil
}
