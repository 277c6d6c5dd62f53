package watcher

import (
	"context"
	"math"
	"time"
)

// RetryPolicy bounds how often a failed subscription is re-established.
type RetryPolicy struct {
	// MaxAttempts is the number of consecutive failed subscription attempts
	// tolerated before Run gives up. Zero means retry forever.
	MaxAttempts int
	// InitialDelay is the wait after the first failure.
	InitialDelay time.Duration
	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration
	// Multiplier grows the delay after each further failure.
	Multiplier float64
}

// DefaultRetryPolicy returns the default subscription retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  10,
		InitialDelay: 5 * time.Second,
		MaxDelay:     2 * time.Minute,
		Multiplier:   2.0,
	}
}

// delayCeiling bounds Delay when MaxDelay is unset.
const delayCeiling = time.Hour

// Delay returns the wait after the given number of consecutive failures (1-based).
// The result is never negative and never exceeds MaxDelay, or delayCeiling
// when MaxDelay is not positive.
func (p RetryPolicy) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	mult := p.Multiplier
	if mult < 1 || math.IsNaN(mult) {
		mult = 1
	}
	limit := p.MaxDelay
	if limit <= 0 {
		limit = delayCeiling
	}
	if p.InitialDelay <= 0 {
		return 0
	}

	d := float64(p.InitialDelay)
	for i := 1; i < failures && d < float64(limit); i++ {
		d *= mult
	}
	if d >= float64(limit) {
		return limit
	}
	return time.Duration(d)
}

// Exhausted reports whether failures has reached the attempt limit.
func (p RetryPolicy) Exhausted(failures int) bool {
	return p.MaxAttempts > 0 && failures >= p.MaxAttempts
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
