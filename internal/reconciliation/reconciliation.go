// Package reconciliation runs periodic consistency checks over decision data.
//
// The audit-first commit discipline says every settled return has a
// matching trail entry; these checks verify that after the fact and
// surface anything the discipline missed, plus operational drift like
// returns stuck in pending.
package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Check counts inconsistencies of one kind. A non-nil error means the
// check itself could not run.
type Check func(ctx context.Context) (int, error)

type namedCheck struct {
	name  string
	check Check
	gauge func(float64)
}

// Runner executes registered checks and exports the counts.
type Runner struct {
	checks []namedCheck
	logger *slog.Logger
}

// NewRunner creates a check runner.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Register adds a named check. The gauge receives the count after each run.
func (r *Runner) Register(name string, gauge func(float64), check Check) {
	r.checks = append(r.checks, namedCheck{name: name, check: check, gauge: gauge})
}

// RunAll executes every check. Individual check failures are counted
// and logged but do not stop the run.
func (r *Runner) RunAll(ctx context.Context) (map[string]int, error) {
	start := time.Now()
	defer func() { reconcileDuration.Observe(time.Since(start).Seconds()) }()

	results := make(map[string]int, len(r.checks))
	var firstErr error
	for _, nc := range r.checks {
		count, err := nc.check(ctx)
		if err != nil {
			reconcileErrors.Inc()
			r.logger.Warn("reconciliation check failed", "check", nc.name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("check %s: %w", nc.name, err)
			}
			continue
		}
		results[nc.name] = count
		if nc.gauge != nil {
			nc.gauge(float64(count))
		}
		if count > 0 {
			r.logger.Warn("reconciliation found inconsistencies", "check", nc.name, "count", count)
		}
	}
	return results, firstErr
}
