package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
)

// Analyzer is the boundary to the external analysis pipeline. One call is one
// attempt: it may be slow, it may fail, and its error chain must carry the
// domain classification sentinels.
type Analyzer interface {
	Analyze(ctx context.Context, ticker string, asOf time.Time) (*domain.Report, error)
}

// ErrNoTickers is returned when a run is submitted with an empty ticker set.
var ErrNoTickers = fmt.Errorf("no tickers submitted")

// ValidateTickers rejects empty sets and duplicates. Duplicates are rejected
// rather than deduplicated: a duplicate almost always means the caller
// assembled the set incorrectly.
func ValidateTickers(tickers []string) error {
	if len(tickers) == 0 {
		return ErrNoTickers
	}
	seen := make(map[string]struct{}, len(tickers))
	for _, ticker := range tickers {
		if _, exists := seen[ticker]; exists {
			return fmt.Errorf("duplicate ticker %q in batch", ticker)
		}
		seen[ticker] = struct{}{}
	}
	return nil
}

// Scheduler drives the jobs of a single run through their state machine.
// It owns the worker pool and consults the retry policy and the concurrency
// controller. One scheduler serves exactly one run.
type Scheduler struct {
	analyzer   Analyzer
	policy     *RetryPolicy
	controller *Controller
	log        zerolog.Logger
	now        func() time.Time

	mu      sync.Mutex
	run     *Run
	running int             // jobs currently in the Running state
	ctx     context.Context // base context for worker attempts

	// resolved wakes the coordinator after any terminal transition.
	resolved chan struct{}
}

// NewScheduler creates a scheduler for one run.
func NewScheduler(analyzer Analyzer, policy *RetryPolicy, controller *Controller, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		analyzer:   analyzer,
		policy:     policy,
		controller: controller,
		log:        log.With().Str("component", "scheduler").Logger(),
		now:        time.Now,
		resolved:   make(chan struct{}, 1),
	}
}

// Submit validates the ticker set and creates one pending job per ticker.
func (s *Scheduler) Submit(tickers []string, asOf time.Time, deadline time.Time) (*Run, error) {
	if err := ValidateTickers(tickers); err != nil {
		return nil, err
	}

	run := &Run{
		ID:       uuid.New(),
		AsOf:     asOf,
		Deadline: deadline,
		jobs:     make(map[string]*Job, len(tickers)),
		order:    make([]string, 0, len(tickers)),
	}
	now := s.now()
	for _, ticker := range tickers {
		run.jobs[ticker] = &Job{Ticker: ticker, State: JobPending, EnqueuedAt: now}
		run.order = append(run.order, ticker)
	}

	s.mu.Lock()
	s.run = run
	s.mu.Unlock()

	return run, nil
}

// Start begins admitting jobs. ctx is the base context for every attempt; it
// carries the batch deadline so providers that honor contexts stop early.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.admit()
}

// Completed reports whether every job reached a terminal state.
func (s *Scheduler) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.state != RunActive
}

// Resolved returns the channel signalled after every terminal job transition.
func (s *Scheduler) Resolved() <-chan struct{} {
	return s.resolved
}

// admit moves admissible jobs into Running while the worker count is below
// the controller's current limit. It is the sole mutator of the running
// count on the way up, so concurrent completion callbacks can never
// double-admit past the limit.
func (s *Scheduler) admit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil || s.run.state != RunActive || s.ctx == nil {
		return
	}

	now := s.now()
	for s.running < s.controller.CurrentLimit() {
		job := s.run.nextDue(now)
		if job == nil {
			return
		}
		job.markRunning(now)
		s.running++
		s.log.Debug().
			Str("ticker", job.Ticker).
			Int("attempt", job.Attempts).
			Int("running", s.running).
			Msg("job admitted")
		go s.execute(job, job.Attempts)
	}
}

// execute runs one attempt and feeds the result back.
func (s *Scheduler) execute(job *Job, attempt int) {
	ctx, cancel := context.WithDeadline(s.ctx, s.run.Deadline)
	defer cancel()

	report, err := s.analyzer.Analyze(ctx, job.Ticker, s.run.AsOf)
	s.onJobResult(job, attempt, report, err)
}

// onJobResult records the outcome of one attempt. Results arriving after the
// run was finalized (deadline fired while the call was in flight) are
// discarded; the job already carries its timeout outcome.
func (s *Scheduler) onJobResult(job *Job, attempt int, report *domain.Report, err error) {
	s.mu.Lock()

	if s.run.state != RunActive || job.State != JobRunning || job.Attempts != attempt {
		s.mu.Unlock()
		s.log.Debug().Str("ticker", job.Ticker).Msg("discarding result for abandoned attempt")
		return
	}

	now := s.now()
	s.running--

	if err == nil {
		job.markSucceeded(report, now)
		s.controller.OnHealthySignal()
		s.log.Info().
			Str("ticker", job.Ticker).
			Int("attempts", job.Attempts).
			Msg("analysis succeeded")
	} else {
		kind := domain.Classify(err)
		if kind == domain.KindRateLimited {
			s.controller.OnThrottleSignal()
			s.log.Warn().
				Int("limit", s.controller.CurrentLimit()).
				Msg("throttling detected, reducing workers")
		}

		if decision := s.policy.Decide(kind, job.Attempts); decision.Retry {
			job.markRetrying(kind, err.Error(), now.Add(decision.Delay))
			s.log.Warn().
				Str("ticker", job.Ticker).
				Str("kind", kind.String()).
				Dur("delay", decision.Delay).
				Int("attempt", job.Attempts).
				Msg("attempt failed, retry scheduled")
			time.AfterFunc(decision.Delay, s.admit)
		} else {
			job.markFailed(kind, err.Error(), now)
			s.log.Error().
				Err(err).
				Str("ticker", job.Ticker).
				Str("kind", kind.String()).
				Int("attempts", job.Attempts).
				Msg("analysis failed permanently")
		}
	}

	s.run.refreshState()
	s.mu.Unlock()

	s.notify()
	s.admit()
}

// ForceTimeout finalizes the run at the deadline: every non-terminal job is
// failed with a timeout outcome. In-flight calls are not cancelled here; they
// are abandoned and their eventual results discarded.
func (s *Scheduler) ForceTimeout() {
	s.mu.Lock()

	if s.run.state != RunActive {
		s.mu.Unlock()
		return
	}
	s.run.state = RunTimedOut

	now := s.now()
	abandoned := 0
	for _, job := range s.run.jobs {
		if !job.State.Terminal() {
			job.markFailed(domain.KindTimeout, "batch deadline exceeded", now)
			abandoned++
		}
	}
	s.mu.Unlock()

	s.log.Warn().Int("abandoned", abandoned).Msg("batch deadline reached, abandoning unresolved jobs")
	s.notify()
}

// Snapshot returns the run's result. Must only be called once the run is no
// longer active.
func (s *Scheduler) Snapshot(startedAt, finishedAt time.Time) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.result(startedAt, finishedAt)
}

func (s *Scheduler) notify() {
	select {
	case s.resolved <- struct{}{}:
	default:
		// Wakeup already pending
	}
}
