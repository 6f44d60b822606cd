package site

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	name := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDirLookup(t *testing.T) {
	Convey("Given an asset directory", t, func() {
		root := t.TempDir()
		writeFile(t, root, "index.html", "<html>entry</html>")
		writeFile(t, root, "css/app.css", "body{}")
		writeFile(t, root, ".env", "SECRET=1")
		writeFile(t, root, ".git/config", "[core]")
		So(os.MkdirAll(filepath.Join(root, "pages"), 0o755), ShouldBeNil)

		dir := NewDir(root, "assets", "index.html")

		Convey("Then existing files resolve", func() {
			name, err := dir.Lookup("/css/app.css")
			So(err, ShouldBeNil)
			So(name, ShouldEqual, filepath.Join(root, "css", "app.css"))
		})

		Convey("Then the excluded entry document never resolves", func() {
			_, err := dir.Lookup("/index.html")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			_, err = dir.Lookup("/css/../index.html")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Then hidden files are treated as missing", func() {
			_, err := dir.Lookup("/.env")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			_, err = dir.Lookup("/.git/config")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Then directories and the root are not regular files", func() {
			_, err := dir.Lookup("/pages")
			So(errors.Is(err, ErrNotRegular), ShouldBeTrue)

			_, err = dir.Lookup("/")
			So(errors.Is(err, ErrNotRegular), ShouldBeTrue)
		})

		Convey("Then traversal stays inside the root", func() {
			outside := filepath.Join(filepath.Dir(root), "outside.txt")
			So(os.WriteFile(outside, []byte("x"), 0o600), ShouldBeNil)
			defer os.Remove(outside)

			_, err := dir.Lookup("/../outside.txt")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Then missing files report not found", func() {
			_, err := dir.Lookup("/nope.js")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When serving a resolved file", func() {
			name, err := dir.Lookup("/css/app.css")
			So(err, ShouldBeNil)

			req := httptest.NewRequest(http.MethodGet, "/css/app.css", nil)
			w := httptest.NewRecorder()
			So(dir.ServeFile(w, req, name), ShouldBeNil)

			Convey("Then the content type is inferred", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/css")
				So(w.Body.String(), ShouldEqual, "body{}")
			})
		})

		Convey("When serving a file that vanished", func() {
			req := httptest.NewRequest(http.MethodGet, "/gone.css", nil)
			w := httptest.NewRecorder()
			err := dir.ServeFile(w, req, filepath.Join(root, "gone.css"))

			Convey("Then an error is returned and nothing is written", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(w.Body.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestEntry(t *testing.T) {
	Convey("Given an entry document", t, func() {
		root := t.TempDir()
		writeFile(t, root, "index.html", "<html>entry</html>")
		entry := NewEntry(root, "index.html")
		So(entry.Path(), ShouldEqual, filepath.Join(root, "index.html"))

		Convey("When served for a client-side route", func() {
			req := httptest.NewRequest(http.MethodGet, "/complaints/42/index.html", nil)
			w := httptest.NewRecorder()
			err := entry.Serve(w, req)

			Convey("Then the raw bytes are written without redirect", func() {
				So(err, ShouldBeNil)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(w.Body.String(), ShouldEqual, "<html>entry</html>")
			})
		})

		Convey("When served with HEAD", func() {
			req := httptest.NewRequest(http.MethodHead, "/", nil)
			w := httptest.NewRecorder()

			So(entry.Serve(w, req), ShouldBeNil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.Len(), ShouldEqual, 0)
		})

		Convey("When the document is missing", func() {
			So(os.Remove(entry.Path()), ShouldBeNil)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			w := httptest.NewRecorder()
			err := entry.Serve(w, req)

			Convey("Then an error is returned and nothing is written", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(w.Body.Len(), ShouldEqual, 0)
				So(w.Header().Get("Content-Type"), ShouldEqual, "")
			})
		})

		Convey("When the document is a directory", func() {
			So(os.Remove(entry.Path()), ShouldBeNil)
			So(os.Mkdir(entry.Path(), 0o755), ShouldBeNil)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			w := httptest.NewRecorder()

			So(errors.Is(entry.Serve(w, req), ErrNotRegular), ShouldBeTrue)
		})
	})
}
