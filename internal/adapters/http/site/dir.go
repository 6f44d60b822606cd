// Package site serves the single-page application and uploaded files from disk.
package site

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klhresolve/backend/pkg/metrics"
)

// Dir is a read-only directory whose regular, non-hidden files can be served.
type Dir struct {
	root    string
	source  string
	exclude map[string]struct{}
}

// NewDir returns a Dir rooted at root. source labels metrics ("assets",
// "uploads"). exclude lists slash-separated paths relative to root that are
// never matched.
func NewDir(root, source string, exclude ...string) *Dir {
	d := &Dir{
		root:    filepath.Clean(root),
		source:  source,
		exclude: make(map[string]struct{}, len(exclude)),
	}
	for _, e := range exclude {
		d.exclude[cleanPath(e)] = struct{}{}
	}
	return d
}

// Root returns the directory on disk.
func (d *Dir) Root() string { return d.root }

// Lookup maps a URL path (relative to the directory's mount point) to a file
// on disk. It returns ErrNotFound for missing, hidden or excluded names and
// ErrNotRegular for directories and special files.
func (d *Dir) Lookup(urlPath string) (string, error) {
	clean := cleanPath(urlPath)
	if clean == "/" {
		return "", ErrNotRegular
	}
	if _, ok := d.exclude[clean]; ok {
		return "", ErrNotFound
	}
	if hidden(clean) {
		return "", ErrNotFound
	}

	name := filepath.Join(d.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	info, err := os.Stat(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, clean)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotRegular, clean)
	}
	return name, nil
}

// ServeFile writes the file found by Lookup.
func (d *Dir) ServeFile(w http.ResponseWriter, r *http.Request, name string) error {
	if err := serveFile(w, r, name); err != nil {
		return err
	}
	metrics.RecordFileServed(d.source)
	return nil
}

// cleanPath normalises a URL path to a rooted, dot-free form.
func cleanPath(p string) string {
	return path.Clean("/" + p)
}

func hidden(clean string) bool {
	for _, seg := range strings.Split(clean, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// serveFile opens name and streams it with http.ServeContent. Nothing is
// written to w when an error is returned. http.ServeFile is avoided because
// it redirects paths ending in /index.html.
func serveFile(w http.ResponseWriter, r *http.Request, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegular, name)
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return nil
}
