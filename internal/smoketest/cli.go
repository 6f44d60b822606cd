package smoketest

import (
	"fmt"
	"io"

	"github.com/klhresolve/backend/pkg/logger"
)

// SetupLogging initializes the logger for the smoke tool.
func SetupLogging(w io.Writer, verbose bool) error {
	if err := logger.Init(logger.WithOutput(w)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "info"
	if verbose {
		level = "debug"
	}
	return logger.SetLevelString(level)
}

// ShowHelp prints usage information for the smoke tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `KLHResolve Smoke Tool
=====================

Exercises a running server and verifies its routing contract.

Usage:
  go run ./cmd/smoke [options]

Options:
  -url string
        Base URL of the server (default "http://localhost:5000")
  -rounds int
        Times every check is repeated (default 5)
  -workers int
        Number of concurrent workers (default 4)
  -timeout duration
        HTTP request timeout (default 10s)
  -verbose
        Log every check result
  -help
        Show this help message

Examples:
  go run ./cmd/smoke -url http://localhost:5000
  go run ./cmd/smoke -rounds 50 -workers 16 -verbose
`)
}
