package smoketest

import (
	"io"
	"net/http"
	"time"
)

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL string        // Base URL of the server under test
	Rounds  int           // Times every check is repeated
	Workers int           // Number of concurrent workers
	Timeout time.Duration // HTTP request timeout
	Verbose bool          // Log every check result
	Out     io.Writer     // Summary destination; nil discards it
}

// Check is one request and the verification of its answer.
type Check struct {
	Name   string
	Method string
	Path   string
	Verify func(resp *http.Response, body []byte) error
}

// Failure records a check that did not pass.
type Failure struct {
	Check string
	Err   error
}

// Stats holds run statistics.
type Stats struct {
	Checks    int
	Passed    int
	Failed    int
	Failures  []Failure
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
