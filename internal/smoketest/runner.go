// Package smoketest exercises a running server and verifies its routing
// contract: health shape and monotonic timestamps, JSON 404s for unknown API
// and upload paths, the SPA fallback, the root document and the API groups.
package smoketest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klhresolve/backend/pkg/logger"
)

type job struct {
	check Check
	round int
}

// Run executes every check cfg.Rounds times across cfg.Workers workers. It
// returns ErrChecksFailed when any check failed; stats are returned either way.
func Run(ctx context.Context, cfg *Config, checks ...Check) (*Stats, error) {
	applyDefaults(cfg)
	if len(checks) == 0 {
		checks = DefaultChecks()
	}
	log := logger.Named("smoke")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting smoke run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("checks", len(checks)),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	client := newHTTPClient(cfg.Timeout)
	base := strings.TrimRight(cfg.BaseURL, "/")

	var (
		passed int64
		failed int64
		mu     sync.Mutex
		wg     sync.WaitGroup
	)
	jobs := make(chan job, cfg.Workers*WorkerChannelMultiplier)

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				err := runCheck(ctx, client, base, j.check)
				if err == nil {
					atomic.AddInt64(&passed, 1)
					if cfg.Verbose {
						log.Debug(ctx, "check passed", logger.String("check", j.check.Name), logger.Int("round", j.round))
					}
					continue
				}
				atomic.AddInt64(&failed, 1)
				log.Warn(ctx, "check failed", logger.String("check", j.check.Name), logger.Int("round", j.round), logger.Error(err))
				mu.Lock()
				stats.Failures = append(stats.Failures, Failure{Check: j.check.Name, Err: err})
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)
		for round := 0; round < cfg.Rounds; round++ {
			for _, c := range checks {
				select {
				case <-ctx.Done():
					return
				case jobs <- job{check: c, round: round}:
				}
			}
		}
	}()

	wg.Wait()

	if err := checkMonotonicHealth(ctx, client, base); err != nil {
		failed++
		stats.Failures = append(stats.Failures, Failure{Check: "health_monotonic", Err: err})
	} else {
		passed++
	}

	stats.Passed = int(passed)
	stats.Failed = int(failed)
	stats.Checks = stats.Passed + stats.Failed
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(cfg.Out, stats)
	log.Info(ctx, "smoke run completed",
		logger.Int("passed", stats.Passed),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration),
	)

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("smoke run interrupted: %w", err)
	}
	if stats.Failed > 0 {
		return stats, fmt.Errorf("%w: %d of %d", ErrChecksFailed, stats.Failed, stats.Checks)
	}
	return stats, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Rounds <= 0 {
		cfg.Rounds = DefaultRounds
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
}

func runCheck(ctx context.Context, client *HTTPClient, base string, c Check) error {
	resp, body, err := client.Do(ctx, c.Method, base+c.Path)
	if err != nil {
		return err
	}
	return c.Verify(resp, body)
}

// checkMonotonicHealth polls health twice in sequence and requires the
// second timestamp to be strictly greater.
func checkMonotonicHealth(ctx context.Context, client *HTTPClient, base string) error {
	var prev int64
	for i := 0; i < 2; i++ {
		resp, body, err := client.Do(ctx, "GET", base+"/health")
		if err != nil {
			return err
		}
		if err := verifyHealth(resp, body); err != nil {
			return err
		}
		var h healthBody
		if err := unmarshalJSON(body, &h); err != nil {
			return err
		}
		if i > 0 && h.Timestamp <= prev {
			return fmt.Errorf("%w: %d then %d", ErrNotMonotonic, prev, h.Timestamp)
		}
		prev = h.Timestamp
	}
	return nil
}

// displayFinalStats prints the run summary.
func displayFinalStats(w io.Writer, stats *Stats) {
	var successRate float64
	if stats.Checks > 0 {
		successRate = float64(stats.Passed) / float64(stats.Checks) * PercentageMultiplier
	}

	fmt.Fprintf(w, "checks: %d  passed: %d  failed: %d  success: %.1f%%  duration: %s\n",
		stats.Checks, stats.Passed, stats.Failed, successRate, stats.Duration.Round(time.Millisecond))

	for i, f := range stats.Failures {
		if i == maxReportedFailures {
			fmt.Fprintf(w, "  ... %d more\n", len(stats.Failures)-maxReportedFailures)
			break
		}
		fmt.Fprintf(w, "  FAIL %s: %v\n", f.Check, f.Err)
	}
}
