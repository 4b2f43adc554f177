package imagepick

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultProviderRate is the proactive per-provider request rate.
	DefaultProviderRate = 5.0

	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"

	// defaultRateLimitBackoff applies when a 429 carries no Retry-After.
	defaultRateLimitBackoff = 60 * time.Second
)

// RateLimiter throttles one provider: a token bucket ahead of each request
// and a block window after the provider answers 429. State lives only as
// long as the limiter.
type RateLimiter struct {
	provider string
	bucket   *rate.Limiter

	mu           sync.Mutex
	blockedUntil time.Time
}

// NewRateLimiter returns a limiter allowing perSecond requests (burst 1).
// perSecond <= 0 uses DefaultProviderRate.
func NewRateLimiter(provider string, perSecond float64) *RateLimiter {
	if perSecond <= 0 {
		perSecond = DefaultProviderRate
	}
	return &RateLimiter{
		provider: provider,
		bucket:   rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Wait blocks until a request may be made. While the provider has
// signalled a rate limit it returns a *RateLimitError at once.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	until := r.blockedUntil
	r.mu.Unlock()

	if time.Now().Before(until) {
		return &RateLimitError{Provider: r.provider, ResetAt: until}
	}
	return r.bucket.Wait(ctx)
}

// CheckResponse records a 429 and returns the matching *RateLimitError,
// or nil for any other status.
func (r *RateLimiter) CheckResponse(resp *http.Response) error {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}

	resetAt := time.Now().Add(defaultRateLimitBackoff)
	if retryAfter := resp.Header.Get(HeaderRetryAfter); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			resetAt = time.Now().Add(time.Duration(seconds) * time.Second)
		}
	}

	r.mu.Lock()
	if resetAt.After(r.blockedUntil) {
		r.blockedUntil = resetAt
	}
	r.mu.Unlock()

	return &RateLimitError{Provider: r.provider, ResetAt: resetAt}
}
