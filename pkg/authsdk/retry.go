package authsdk

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds the transparent retries the session manager performs on
// retryable failures. The zero value means "use defaults".
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first one.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration

	// MaxDelay caps the backoff regardless of attempt count.
	MaxDelay time.Duration

	// jitter returns a value in [0,1). Overridable in tests.
	jitter func() float64
}

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 15 * time.Second
)

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.jitter == nil {
		p.jitter = rand.Float64
	}
	return p
}

// Delay computes the backoff before retry number attempt (0-based, counting
// failures so far). A positive server hint replaces the exponential term but
// still gets jittered, so synchronized clients do not stampede the endpoint
// in lockstep.
func (p RetryPolicy) Delay(attempt int, hint time.Duration) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if hint > 0 {
		d = hint
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}

	return time.Duration(float64(d) * (0.5 + p.jitter()/2))
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
