package imagepick

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrTooLarge indicates a payload above the configured byte ceiling.
var ErrTooLarge = errors.New("imagepick: payload exceeds byte ceiling")

// ConfigurationError aborts a run before any network activity.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "imagepick: configuration error: " + e.Reason
}

// IsConfigurationError checks if err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// AdapterError is a provider-side failure. Adapters log it and return no
// candidates; it never reaches the orchestrator.
type AdapterError struct {
	Provider string
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("imagepick: provider %s: %v", e.Provider, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// RateLimitError represents a provider rate limit with its reset time.
type RateLimitError struct {
	Provider string
	ResetAt  time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("imagepick: %s rate limit exceeded, resets at %s", e.Provider, e.ResetAt.Format(time.RFC3339))
}

// NetworkError is a failed HTTP exchange. StatusCode is 0 for transport errors.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("imagepick: GET %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("imagepick: GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Temporary reports whether repeating the request may succeed.
func (e *NetworkError) Temporary() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var ne *NetworkError
	return errors.As(err, &ne) && ne.StatusCode == http.StatusTooManyRequests
}

// RejectReason explains why a candidate was excluded. Rejections are expected
// outcomes, not errors.
type RejectReason string

const (
	ReasonEmpty         RejectReason = "empty payload"
	ReasonVector        RejectReason = "vector format"
	ReasonUnknownFormat RejectReason = "unrecognized format"
	ReasonTooLarge      RejectReason = "too large"
	ReasonDecode        RejectReason = "decode error"
	ReasonTooSmall      RejectReason = "too small"
	ReasonBlockedTerm   RejectReason = "blocked term"
	ReasonStock         RejectReason = "stock image"
	ReasonLogo          RejectReason = "logo or banner"
	ReasonDuplicate     RejectReason = "visual duplicate"
	ReasonFetchFailed   RejectReason = "fetch failed"
	ReasonCancelled     RejectReason = "cancelled"
	ReasonPanic         RejectReason = "internal error"
)

// Pipeline stages recorded on rejections.
const (
	StagePrefilter = "prefilter"
	StageFetch     = "fetch"
	StageValidate  = "validate"
	StageDedup     = "dedup"
	StageBatch     = "batch"
)

// Rejection records a dropped candidate for diagnostics.
type Rejection struct {
	Source string       `json:"source,omitempty"`
	URL    string       `json:"url,omitempty"`
	Stage  string       `json:"stage"`
	Reason RejectReason `json:"reason"`
	Detail string       `json:"detail,omitempty"`
}

func newRejection(c Candidate, stage string, reason RejectReason, detail string) Rejection {
	return Rejection{Source: c.SourceID, URL: c.URL, Stage: stage, Reason: reason, Detail: detail}
}
