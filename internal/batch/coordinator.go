package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/config"
)

// Request describes one batch invocation.
type Request struct {
	Tickers []string
	AsOf    time.Time     // analysis date; zero means today
	Timeout time.Duration // zero means the configured global timeout
}

// Coordinator is the top-level entry point for batch runs. Each Run call
// builds a fresh scheduler and concurrency controller, so concurrent batches
// are fully isolated from each other.
type Coordinator struct {
	analyzer Analyzer
	cfg      config.BatchConfig
	log      zerolog.Logger
	now      func() time.Time
}

// NewCoordinator creates a batch coordinator.
func NewCoordinator(analyzer Analyzer, cfg config.BatchConfig, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		analyzer: analyzer,
		cfg:      cfg,
		log:      log.With().Str("component", "batch").Logger(),
		now:      time.Now,
	}
}

// Run executes the batch and blocks until every ticker is resolved or the
// deadline fires. The returned result always covers every submitted ticker.
// When the deadline forces termination the result's state is RunTimedOut and
// the unresolved tickers carry timeout outcomes; this is not reported as an
// error. An error is returned only for malformed input or when ctx is
// cancelled from outside.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Result, error) {
	startedAt := c.now()

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = startedAt
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.GlobalTimeout
	}
	deadline := startedAt.Add(timeout)

	controller := NewController(c.cfg.WorkerFloor, c.cfg.WorkerCeiling, c.cfg.RecoveryThreshold)
	policy := NewRetryPolicy(c.cfg.MaxRetries, c.cfg.RetryBaseDelay, c.cfg.RetryMinDelay)
	sched := NewScheduler(c.analyzer, policy, controller, c.log)
	sched.now = c.now

	run, err := sched.Submit(req.Tickers, asOf, deadline)
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Str("run_id", run.ID.String()).
		Int("tickers", len(req.Tickers)).
		Int("workers", controller.CurrentLimit()).
		Time("deadline", deadline).
		Msg("batch run started")

	sched.Start(ctx)

	timer := time.NewTimer(deadline.Sub(c.now()))
	defer timer.Stop()

	for {
		select {
		case <-sched.Resolved():
			if !sched.Completed() {
				continue
			}
			result := sched.Snapshot(startedAt, c.now())
			c.log.Info().
				Str("run_id", run.ID.String()).
				Str("state", result.State.String()).
				Int("succeeded", result.Succeeded()).
				Int("total", len(result.Outcomes)).
				Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
				Msg("batch run finished")
			return result, nil

		case <-timer.C:
			sched.ForceTimeout()
			result := sched.Snapshot(startedAt, c.now())
			c.log.Warn().
				Str("run_id", run.ID.String()).
				Int("succeeded", result.Succeeded()).
				Int("total", len(result.Outcomes)).
				Msg("batch run timed out")
			return result, nil

		case <-ctx.Done():
			sched.ForceTimeout()
			return sched.Snapshot(startedAt, c.now()), ctx.Err()
		}
	}
}
