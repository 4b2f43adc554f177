package imagepick

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves candidate bytes with a per-attempt timeout, a byte
// ceiling and a retry policy.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
	Retry     RetryPolicy
}

// Fetch downloads c.URL and returns a FetchedCandidate with the sniffed format.
// Errors are *NetworkError or wrap ErrTooLarge.
func (f *Fetcher) Fetch(ctx context.Context, c Candidate) (*FetchedCandidate, error) {
	var data []byte
	err := f.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = f.fetchOnce(ctx, c.URL)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &FetchedCandidate{
		Candidate: c,
		Data:      data,
		Format:    Sniff(data),
	}, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, imageURL string) ([]byte, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, &NetworkError{URL: imageURL, Err: err}
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := client.Do(req) //nolint:gosec // G107: URL comes from provider search results
	if err != nil {
		return nil, &NetworkError{URL: imageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &NetworkError{URL: imageURL, StatusCode: resp.StatusCode}
	}

	// Reject on the size hint before buffering anything.
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: content-length %d", ErrTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, &NetworkError{URL: imageURL, Err: err}
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
