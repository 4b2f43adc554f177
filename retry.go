package imagepick

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy is applied uniformly at the byte-fetch boundary.
// Zero values mean "use defaults": 2 attempts, 500ms backoff doubling per attempt.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first (default 2)
	Backoff     time.Duration // delay before the second attempt (default 500ms)
	Multiplier  float64       // backoff growth per attempt (default 2)
}

const (
	defaultRetryAttempts   = 2
	defaultRetryBackoff    = 500 * time.Millisecond
	defaultRetryMultiplier = 2.0
)

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultRetryAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultRetryBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaultRetryMultiplier
	}
	return p
}

// delay returns the wait before attempt n (n >= 1 is the first retry).
func (p RetryPolicy) delay(n int) time.Duration {
	d := float64(p.Backoff)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = p.withDefaults()
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(p.delay(attempt)):
			}
		}
		err = fn(ctx)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, ErrTooLarge) {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Temporary()
	}
	return false
}
