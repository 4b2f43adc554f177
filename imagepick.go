// Package imagepick acquires one best image per search term from several
// image providers. Candidates are discovered concurrently, fetched through a
// bounded pool, validated, ranked and selected deterministically; the result
// of a batch is a Manifest.
package imagepick

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pipeline defaults.
const (
	DefaultCandidatesPerProvider = 3
	DefaultMaxCandidates         = 10
	DefaultFetchWorkers          = 10
	DefaultTermWorkers           = 8
	DefaultSearchTimeout         = 12 * time.Second
	DefaultFetchTimeout          = 15 * time.Second
	DefaultMaxBytes              = 10 << 20 // 10MB
	DefaultMinDimension          = 200
)

const defaultUserAgent = "Mozilla/5.0 (compatible; go-imagepick/1.0)"

// DefaultSourcePriority breaks score ties: earlier providers win.
var DefaultSourcePriority = []string{
	ProviderUnsplash,
	ProviderPexels,
	ProviderPixabay,
	ProviderWikipedia,
	ProviderWikimedia,
}

// DefaultBlocklist is the lexical safety filter applied to candidate text.
// Terms match on word boundaries, case-insensitively.
var DefaultBlocklist = []string{
	"nsfw", "nude", "naked", "nudity", "erotic", "porn", "sexy",
	"gore", "bloody", "corpse", "autopsy", "wound", "surgery", "cadaver",
}

// Cache abstracts key-value caching (Redis, in-memory, etc.)
type Cache interface {
	Key(prefix, value string) string
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
}

// Sink receives the bytes of selected and alternate images.
type Sink interface {
	Store(ctx context.Context, filename string, data []byte) error
}

// Config holds all dependencies injected by the consumer.
// It is copied by NewOrchestrator; later mutation has no effect.
type Config struct {
	Adapters   []SourceAdapter // queried concurrently, merged in this order
	Ranker     Ranker          // nil = HeuristicRanker with default weights
	HTTPClient *http.Client    // byte fetch client (nil = http.DefaultClient)
	UserAgent  string          // default: "Mozilla/5.0 (compatible; go-imagepick/1.0)"
	Sink       Sink            // optional: receives winner and alternates

	CandidatesPerProvider int           // desired results per adapter (default 3)
	MaxCandidates         int           // ceiling of candidates considered per term (default 10)
	FetchWorkers          int           // byte fetch pool size per term (default 10)
	SearchTimeout         time.Duration // per adapter call (default 12s)
	FetchTimeout          time.Duration // per fetch attempt (default 15s)
	MaxBytes              int64         // payload ceiling (default 10MB)
	MinDimension          int           // pixel floor for width and height (default 200)
	Retry                 RetryPolicy   // applied to every byte fetch

	// Blocklist overrides DefaultBlocklist. Use an empty non-nil slice to disable.
	Blocklist []string

	// SourcePriority overrides DefaultSourcePriority for tie breaking.
	SourcePriority []string

	// ExtraBlockedDomains are additional stock domains rejected before fetching.
	ExtraBlockedDomains []string

	// PerceptualDedup drops validated candidates that look like an earlier one.
	PerceptualDedup bool

	// Optional callbacks for metrics/logging.
	OnPanic    func(tag string, r any)
	OnTermDone func(SelectionResult) // called from term workers, possibly concurrently
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Ranker == nil {
		c.Ranker = NewHeuristicRanker(DefaultHeuristicWeights())
	}
	if c.CandidatesPerProvider <= 0 {
		c.CandidatesPerProvider = DefaultCandidatesPerProvider
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = DefaultFetchWorkers
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.MinDimension <= 0 {
		c.MinDimension = DefaultMinDimension
	}
	if c.Blocklist == nil {
		c.Blocklist = DefaultBlocklist
	}
	if len(c.SourcePriority) == 0 {
		c.SourcePriority = DefaultSourcePriority
	}
	c.Retry = c.Retry.withDefaults()
}

// recoverPanic must be deferred directly by the goroutine it protects.
func (c *Config) recoverPanic(tag string) {
	if r := recover(); r != nil {
		c.reportPanic(tag, r)
	}
}

func (c *Config) reportPanic(tag string, r any) {
	slog.Error("imagepick: recovered panic", "tag", tag, "panic", r)
	if c.OnPanic != nil {
		c.OnPanic(tag, r)
	}
}
