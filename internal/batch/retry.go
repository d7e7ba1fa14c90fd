package batch

import (
	"math/rand"
	"time"

	"github.com/aristath/lookout/internal/domain"
)

// Decision is the outcome of a retry policy consultation.
type Decision struct {
	Retry bool
	Delay time.Duration // valid only when Retry is true
}

// RetryPolicy decides whether a failed attempt gets another try and how long
// to wait first. It is pure: it never touches the job or the scheduler.
type RetryPolicy struct {
	MaxRetries int           // retries beyond the first attempt
	BaseDelay  time.Duration // delay before the first retry, doubles per attempt
	MinDelay   time.Duration // floor applied after jitter
	Jitter     float64       // fraction of the base delay, e.g. 0.25 for ±25%

	// randFloat returns a uniform value in [0,1). Injectable for tests.
	randFloat func() float64
}

// NewRetryPolicy builds the standard policy: up to maxRetries retries with
// exponential backoff starting at baseDelay and ±25% jitter. Jitter spreads
// the resume times of jobs that failed at the same moment, so a throttled
// batch does not come back as a synchronized burst.
func NewRetryPolicy(maxRetries int, baseDelay, minDelay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MinDelay:   minDelay,
		Jitter:     0.25,
		randFloat:  rand.Float64,
	}
}

// Decide returns the decision for a failure of the given kind on the given
// attempt (1-based count of completed attempts). Permanent kinds and
// exhausted attempt budgets both yield a no-retry decision.
func (p *RetryPolicy) Decide(kind domain.ErrorKind, attempt int) Decision {
	if !kind.Retryable() {
		return Decision{}
	}
	if attempt > p.MaxRetries {
		return Decision{}
	}

	// 30s, 60s, 120s for attempts 1, 2, 3 with the defaults.
	base := p.BaseDelay << uint(attempt-1)
	delay := base + time.Duration(p.Jitter*(2*p.randFloat()-1)*float64(base))
	if delay < p.MinDelay {
		delay = p.MinDelay
	}

	return Decision{Retry: true, Delay: delay}
}
