package api

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestHealthTimestamp(t *testing.T) {
	Convey("Given a frozen clock", t, func() {
		frozen := time.UnixMilli(1_700_000_000_000)
		h := NewHealthHandler()
		h.now = func() time.Time { return frozen }

		Convey("Then successive timestamps still increase", func() {
			a, b, c := h.Timestamp(), h.Timestamp(), h.Timestamp()
			So(a, ShouldEqual, frozen.UnixMilli())
			So(b, ShouldEqual, a+1)
			So(c, ShouldEqual, b+1)
		})

		Convey("When the clock steps backwards", func() {
			first := h.Timestamp()
			frozen = frozen.Add(-time.Hour)

			Convey("Then timestamps do not follow it", func() {
				So(h.Timestamp(), ShouldBeGreaterThan, first)
			})
		})

		Convey("When polled concurrently", func() {
			const n = 64
			seen := make(chan int64, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					seen <- h.Timestamp()
				}()
			}
			wg.Wait()
			close(seen)

			Convey("Then no value repeats", func() {
				unique := make(map[int64]struct{}, n)
				for ts := range seen {
					unique[ts] = struct{}{}
				}
				So(len(unique), ShouldEqual, n)
			})
		})
	})
}

func TestErrorClassification(t *testing.T) {
	Convey("Given HTTP status codes", t, func() {
		So(getErrorType(500), ShouldEqual, "server_error")
		So(getErrorType(404), ShouldEqual, "not_found")
		So(getErrorType(429), ShouldEqual, "rate_limit")
		So(getErrorType(413), ShouldEqual, "client_error")
		So(getErrorSeverity(503), ShouldEqual, "high")
		So(getErrorSeverity(404), ShouldEqual, "medium")
		So(getErrorSeverity(200), ShouldEqual, "low")
	})
}
