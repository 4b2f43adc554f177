package imagepick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Provider identifiers.
const (
	ProviderUnsplash  = "unsplash"
	ProviderPexels    = "pexels"
	ProviderPixabay   = "pixabay"
	ProviderWikipedia = "wikipedia"
	ProviderWikimedia = "wikimedia"
)

// maxSearchResponse caps a provider JSON body.
const maxSearchResponse = 8 << 20

// SourceAdapter discovers candidate images for a query on one provider.
// Search never fails: an unavailable adapter returns nothing without any
// network call, and provider errors are logged and yield nothing. Adapters
// never fetch image bytes.
type SourceAdapter interface {
	ID() string
	Available() bool
	Search(ctx context.Context, query string, count int) []Candidate
}

// AdapterOptions configure one adapter built by NewAdapter.
type AdapterOptions struct {
	Credential    string       // API key or token; required by unsplash, pexels, pixabay
	BaseURL       string       // overrides the public endpoint (tests, proxies)
	HTTPClient    *http.Client // nil = http.DefaultClient
	UserAgent     string       // default: "Mozilla/5.0 (compatible; go-imagepick/1.0)"
	QueryTemplate string       // e.g. "human {query} close up"; empty = bare query
	RatePerSecond float64      // proactive throttle (default 5)
	Cache         Cache        // optional: caches search responses
}

type adapterFactory func(opts AdapterOptions) SourceAdapter

var registry = map[string]adapterFactory{
	ProviderUnsplash:  func(o AdapterOptions) SourceAdapter { return newUnsplash(o) },
	ProviderPexels:    func(o AdapterOptions) SourceAdapter { return newPexels(o) },
	ProviderPixabay:   func(o AdapterOptions) SourceAdapter { return newPixabay(o) },
	ProviderWikipedia: func(o AdapterOptions) SourceAdapter { return newWikipedia(o) },
	ProviderWikimedia: func(o AdapterOptions) SourceAdapter { return newWikimedia(o) },
}

// NewAdapter builds the adapter registered under id.
func NewAdapter(id string, opts AdapterOptions) (SourceAdapter, error) {
	factory, ok := registry[id]
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown provider %q", id)}
	}
	return factory(opts), nil
}

// ProviderIDs lists the registered provider ids, sorted.
func ProviderIDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// searchFunc performs one provider search for an already templated query.
type searchFunc func(ctx context.Context, query string, count int) ([]Candidate, error)

// baseAdapter carries what every provider shares: credentials, transport,
// throttling, caching and the never-fail Search contract.
type baseAdapter struct {
	id         string
	credential string
	baseURL    string
	userAgent  string
	template   string
	needsKey   bool
	client     *http.Client
	limiter    *RateLimiter
	cache      Cache
}

func newBase(id, defaultURL string, needsKey bool, o AdapterOptions) *baseAdapter {
	b := &baseAdapter{
		id:         id,
		credential: strings.TrimSpace(o.Credential),
		baseURL:    strings.TrimRight(o.BaseURL, "/"),
		userAgent:  o.UserAgent,
		template:   o.QueryTemplate,
		needsKey:   needsKey,
		client:     o.HTTPClient,
		limiter:    NewRateLimiter(id, o.RatePerSecond),
		cache:      o.Cache,
	}
	if b.baseURL == "" {
		b.baseURL = defaultURL
	}
	if b.client == nil {
		b.client = http.DefaultClient
	}
	if b.userAgent == "" {
		b.userAgent = defaultUserAgent
	}
	return b
}

func (b *baseAdapter) ID() string { return b.id }

func (b *baseAdapter) Available() bool { return !b.needsKey || b.credential != "" }

// run wraps a provider search with the shared contract.
func (b *baseAdapter) run(ctx context.Context, query string, count int, search searchFunc) []Candidate {
	if !b.Available() {
		slog.Debug("imagepick: provider unavailable, skipping", "provider", b.id)
		return nil
	}
	q := BuildQuery(b.template, query)
	if q == "" || count <= 0 {
		return nil
	}

	var cacheKey string
	if b.cache != nil {
		cacheKey = b.cache.Key("search", fmt.Sprintf("%s:%d:%s", b.id, count, q))
		var cached []Candidate
		if b.cache.Get(ctx, cacheKey, &cached) {
			return cached
		}
	}

	results, err := search(ctx, q, count)
	if err != nil {
		slog.Warn("imagepick: provider search failed",
			"provider", b.id, "query", q, "error", (&AdapterError{Provider: b.id, Err: err}).Error())
		return nil
	}

	out := make([]Candidate, 0, min(len(results), count))
	for _, c := range results {
		if c.URL == "" {
			continue
		}
		c.SourceID = b.id
		out = append(out, c)
		if len(out) == count {
			break
		}
	}

	if b.cache != nil && len(out) > 0 {
		b.cache.Set(ctx, cacheKey, out)
	}
	slog.Debug("imagepick: provider search done", "provider", b.id, "query", q, "results", len(out))
	return out
}

// getJSON performs a throttled GET and decodes the JSON body into dest.
func (b *baseAdapter) getJSON(ctx context.Context, endpoint string, params url.Values, header http.Header, dest any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &NetworkError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if err := b.limiter.CheckResponse(resp); err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NetworkError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSearchResponse)).Decode(dest); err != nil {
		return fmt.Errorf("decode %s response: %w", b.id, err)
	}
	return nil
}
