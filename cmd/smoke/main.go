package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klhresolve/backend/internal/smoketest"
)

// Default configuration constants.
const (
	defaultBaseURL  = "http://localhost:5000"
	defaultRunLimit = 5 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", defaultBaseURL, "Base URL of the server")
		rounds  = flag.Int("rounds", smoketest.DefaultRounds, "Times every check is repeated")
		workers = flag.Int("workers", smoketest.DefaultWorkers, "Number of concurrent workers")
		timeout = flag.Duration("timeout", smoketest.DefaultTimeout, "HTTP request timeout")
		verbose = flag.Bool("verbose", false, "Log every check result")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		smoketest.ShowHelp(os.Stdout)
		return
	}

	if err := smoketest.SetupLogging(os.Stderr, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunLimit)
	defer cancel()

	cfg := &smoketest.Config{
		BaseURL: *baseURL,
		Rounds:  *rounds,
		Workers: *workers,
		Timeout: *timeout,
		Verbose: *verbose,
		Out:     os.Stdout,
	}

	if _, err := smoketest.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Smoke run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
