package politeness

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// minWidenStep is the delay a zero-delay throttle widens to on its first 429.
const minWidenStep = 500 * time.Millisecond

// Throttle paces the fetches of one worker: consecutive fetch starts are at
// least Delay() apart. Widen and Relax adjust the delay between base and max.
//
// Widen doubles the delay after a 429 response, up to max. Relax steps it
// back toward base after each successful fetch, so a short burst of rate
// limiting does not slow the rest of the crawl.
//
// Design decision: We pace per worker rather than per site. The crawl's
// aggregate rate is therefore about workers/delay, which is the documented
// meaning of --delay and --workers together. A site-wide limiter would make
// --workers only affect parallel fetch latency, not throughput.
type Throttle struct {
	base time.Duration
	max  time.Duration

	mu      sync.Mutex
	current time.Duration
	limiter *rate.Limiter
}

// NewThrottle returns a throttle with the given delay. Widening never exceeds
// maxDelay (or delay, when maxDelay is smaller).
func NewThrottle(delay, maxDelay time.Duration) *Throttle {
	t := &Throttle{
		base:    delay,
		max:     max(delay, maxDelay),
		current: delay,
	}
	t.limiter = rate.NewLimiter(limitFor(delay), 1)
	return t
}

// limitFor converts a delay to a limiter rate. Zero disables pacing.
func limitFor(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// Wait blocks until the worker may start its next fetch or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// Delay returns the current delay.
func (t *Throttle) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Widen doubles the delay, up to the maximum, and returns the new value.
func (t *Throttle) Widen() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.current * 2
	if next < minWidenStep {
		next = minWidenStep
	}
	t.current = min(next, max(t.max, minWidenStep))
	t.limiter.SetLimit(limitFor(t.current))
	return t.current
}

// Relax halves a widened delay back toward the base delay.
func (t *Throttle) Relax() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current <= t.base {
		return
	}
	t.current = max(t.current/2, t.base)
	if t.current < minWidenStep && t.base < minWidenStep {
		t.current = t.base
	}
	t.limiter.SetLimit(limitFor(t.current))
}
