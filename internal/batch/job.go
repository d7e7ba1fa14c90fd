package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/aristath/lookout/internal/domain"
)

// JobState is the lifecycle state of a single analysis job.
type JobState int

const (
	// JobPending means the job is waiting for a worker slot.
	JobPending JobState = iota
	// JobRunning means an attempt is currently executing.
	JobRunning
	// JobRetrying means the last attempt failed and the job is waiting for
	// its backoff delay to elapse.
	JobRetrying
	// JobSucceeded is terminal: the job produced a report.
	JobSucceeded
	// JobFailed is terminal: the job was abandoned.
	JobFailed
)

// String returns a human-readable name for the job state.
func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobRetrying:
		return "retrying"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is one ticker's analysis attempt sequence within a run.
// All mutation happens under the owning scheduler's lock.
type Job struct {
	Ticker     string
	State      JobState
	Attempts   int
	LastKind   domain.ErrorKind
	LastError  string
	EnqueuedAt time.Time
	StartedAt  time.Time
	ResumeAt   time.Time // when a retrying job becomes due again
	TerminalAt time.Time
	Report     *domain.Report
}

func (j *Job) markRunning(now time.Time) {
	j.State = JobRunning
	j.Attempts++
	if j.StartedAt.IsZero() {
		j.StartedAt = now
	}
}

func (j *Job) markSucceeded(report *domain.Report, now time.Time) {
	j.State = JobSucceeded
	j.Report = report
	j.TerminalAt = now
}

func (j *Job) markRetrying(kind domain.ErrorKind, msg string, resumeAt time.Time) {
	j.State = JobRetrying
	j.LastKind = kind
	j.LastError = msg
	j.ResumeAt = resumeAt
}

func (j *Job) markFailed(kind domain.ErrorKind, msg string, now time.Time) {
	j.State = JobFailed
	j.LastKind = kind
	j.LastError = msg
	j.TerminalAt = now
}

// AggregateState is the run-wide status derived from all job states.
type AggregateState int

const (
	// RunActive means at least one job is non-terminal and the deadline has
	// not fired.
	RunActive AggregateState = iota
	// RunCompleted means every job reached a terminal state before the
	// deadline.
	RunCompleted
	// RunTimedOut means the deadline forced the remaining jobs to fail.
	RunTimedOut
)

// String returns a human-readable name for the aggregate state.
func (s AggregateState) String() string {
	switch s {
	case RunActive:
		return "active"
	case RunCompleted:
		return "completed"
	case RunTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Run holds the jobs of one batch invocation. Runs are never reused.
type Run struct {
	ID       uuid.UUID
	AsOf     time.Time
	Deadline time.Time

	jobs  map[string]*Job
	order []string // submission order, used as the admission tie-break
	state AggregateState
}

// nextDue returns the next admissible job: pending jobs in submission order
// first, then the retrying job whose resume time has passed. Returns nil when
// nothing is admissible right now.
func (r *Run) nextDue(now time.Time) *Job {
	for _, ticker := range r.order {
		if job := r.jobs[ticker]; job.State == JobPending {
			return job
		}
	}
	for _, ticker := range r.order {
		if job := r.jobs[ticker]; job.State == JobRetrying && !job.ResumeAt.After(now) {
			return job
		}
	}
	return nil
}

// refreshState promotes the run to RunCompleted once every job is terminal.
// A timed-out run stays timed out.
func (r *Run) refreshState() {
	if r.state != RunActive {
		return
	}
	for _, job := range r.jobs {
		if !job.State.Terminal() {
			return
		}
	}
	r.state = RunCompleted
}

// State returns the current aggregate state.
func (r *Run) State() AggregateState {
	return r.state
}

// OutcomeError is a classified failure attached to an outcome.
type OutcomeError struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// Outcome is the final resolution for one ticker: either a report or a
// classified failure, never both.
type Outcome struct {
	Ticker   string         `json:"ticker"`
	Attempts int            `json:"attempts"`
	Report   *domain.Report `json:"report,omitempty"`
	Err      *OutcomeError  `json:"error,omitempty"`
}

// Success reports whether the outcome carries a report.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// Result is the fully-resolved product of one batch run. Outcomes contains
// exactly one entry per submitted ticker.
type Result struct {
	RunID      uuid.UUID          `json:"run_id"`
	State      AggregateState     `json:"-"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Outcomes   map[string]Outcome `json:"outcomes"`
}

// Succeeded counts outcomes that carry a report.
func (r *Result) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success() {
			n++
		}
	}
	return n
}

// result snapshots the run into a Result. Caller must hold the scheduler lock
// and the run must no longer be active.
func (r *Run) result(startedAt, finishedAt time.Time) *Result {
	outcomes := make(map[string]Outcome, len(r.jobs))
	for ticker, job := range r.jobs {
		o := Outcome{Ticker: ticker, Attempts: job.Attempts}
		if job.State == JobSucceeded {
			o.Report = job.Report
		} else {
			o.Err = &OutcomeError{Kind: job.LastKind, Message: job.LastError}
		}
		outcomes[ticker] = o
	}
	return &Result{
		RunID:      r.ID,
		State:      r.state,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Outcomes:   outcomes,
	}
}
