package batch

import "sync"

// Controller tracks provider throttling and derives the current worker-pool
// size. It follows the usual congestion-control shape: multiplicative
// backoff on a throttle signal, additive recovery after a streak of healthy
// completions. Each run owns its own controller, so concurrent runs do not
// influence each other.
type Controller struct {
	mu                sync.Mutex
	floor             int
	ceiling           int
	limit             int
	recoveryThreshold int
	healthyStreak     int
}

// NewController creates a controller starting at ceiling.
// recoveryThreshold is the number of consecutive healthy completions needed
// to win back one worker slot; a single success must not re-trigger the
// throttling it just recovered from.
func NewController(floor, ceiling, recoveryThreshold int) *Controller {
	if floor < 1 {
		floor = 1
	}
	if ceiling < floor {
		ceiling = floor
	}
	if recoveryThreshold < 1 {
		recoveryThreshold = 1
	}
	return &Controller{
		floor:             floor,
		ceiling:           ceiling,
		limit:             ceiling,
		recoveryThreshold: recoveryThreshold,
	}
}

// CurrentLimit returns the number of workers that may run right now.
func (c *Controller) CurrentLimit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit
}

// OnThrottleSignal halves the limit (clamped to the floor) and resets the
// healthy streak. Called when a job fails with a rate-limit classification.
func (c *Controller) OnThrottleSignal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthyStreak = 0
	c.limit = c.limit / 2
	if c.limit < c.floor {
		c.limit = c.floor
	}
}

// OnHealthySignal records a successful attempt. Once the streak reaches the
// recovery threshold the limit grows by one step toward the ceiling.
func (c *Controller) OnHealthySignal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthyStreak++
	if c.healthyStreak < c.recoveryThreshold {
		return
	}
	c.healthyStreak = 0
	if c.limit < c.ceiling {
		c.limit++
	}
}
