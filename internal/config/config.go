// Package config loads the imagepick TOML configuration and turns it into
// an imagepick.Config.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/anatolykoptev/go-imagepick"
	"github.com/anatolykoptev/go-imagepick/internal/cache"
)

// Environment variables that override credentials from the file.
const (
	EnvUnsplashKey  = "UNSPLASH_ACCESS_KEY"
	EnvPexelsKey    = "PEXELS_API_KEY"
	EnvPixabayKey   = "PIXABAY_API_KEY"
	EnvWikimediaKey = "WIKIMEDIA_API_KEY"
	EnvRedisAddr    = "IMAGEPICK_REDIS_ADDR"
	EnvInferenceKey = "IMAGEPICK_INFERENCE_KEY"
)

var credentialEnv = map[string]string{
	imagepick.ProviderUnsplash:  EnvUnsplashKey,
	imagepick.ProviderPexels:    EnvPexelsKey,
	imagepick.ProviderPixabay:   EnvPixabayKey,
	imagepick.ProviderWikimedia: EnvWikimediaKey,
}

// Duration is a time.Duration written as "15s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Provider configures one source adapter.
type Provider struct {
	Enabled       *bool   `toml:"enabled"`
	Key           string  `toml:"key"`
	BaseURL       string  `toml:"base_url"`
	QueryTemplate string  `toml:"query_template"`
	RatePerSecond float64 `toml:"rate_per_second"`
}

func (p Provider) enabled() bool { return p.Enabled == nil || *p.Enabled }

// Ranking selects and tunes the ranker.
type Ranking struct {
	Strategy     string             `toml:"strategy"`
	InferenceURL string             `toml:"inference_url"`
	InferenceKey string             `toml:"inference_key"`
	BatchSize    int                `toml:"batch_size"`
	Timeout      Duration           `toml:"timeout"`
	SourceBonus  map[string]float64 `toml:"source_bonus"`
}

// Cache configures the search and score cache. Without a Redis address an
// in-process cache is used.
type Cache struct {
	RedisAddr string   `toml:"redis_addr"`
	TTL       Duration `toml:"ttl"`
}

// Config is the on-disk configuration.
type Config struct {
	OutputDir    string `toml:"output_dir"`
	HistoryPath  string `toml:"history_path"`
	UserAgent    string `toml:"user_agent"`
	TermWorkers  int    `toml:"term_workers"`
	FetchWorkers int    `toml:"fetch_workers"`

	CandidatesPerProvider int      `toml:"candidates_per_provider"`
	MaxCandidates         int      `toml:"max_candidates"`
	SearchTimeout         Duration `toml:"search_timeout"`
	FetchTimeout          Duration `toml:"fetch_timeout"`
	MaxBytes              int64    `toml:"max_bytes"`
	MinDimension          int      `toml:"min_dimension"`
	RetryAttempts         int      `toml:"retry_attempts"`
	PerceptualDedup       bool     `toml:"perceptual_dedup"`

	Blocklist           []string `toml:"blocklist"`
	ExtraBlockedDomains []string `toml:"extra_blocked_domains"`
	SourcePriority      []string `toml:"source_priority"`

	Providers map[string]Provider `toml:"providers"`
	Ranking   Ranking             `toml:"ranking"`
	Cache     Cache               `toml:"cache"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path, applies env overrides and defaults, then validates.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	c := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, c); err != nil {
			return nil, &imagepick.ConfigurationError{Reason: fmt.Sprintf("parse %s: %v", path, err)}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	c.applyEnv()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultPath returns ~/.imagepick/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".imagepick", "config.toml"), nil
}

func (c *Config) applyEnv() {
	if c.Providers == nil {
		c.Providers = make(map[string]Provider)
	}
	for id, env := range credentialEnv {
		p := c.Providers[id]
		p.Key = getEnvOrDefault(env, p.Key)
		c.Providers[id] = p
	}
	c.Cache.RedisAddr = getEnvOrDefault(EnvRedisAddr, c.Cache.RedisAddr)
	c.Ranking.InferenceKey = getEnvOrDefault(EnvInferenceKey, c.Ranking.InferenceKey)
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "photos"
	}
	if c.Ranking.Strategy == "" {
		c.Ranking.Strategy = imagepick.StrategyHeuristic
	}
	if c.Cache.TTL.Duration <= 0 {
		c.Cache.TTL.Duration = cache.DefaultTTL
	}
	if len(c.SourcePriority) == 0 {
		c.SourcePriority = append([]string(nil), imagepick.DefaultSourcePriority...)
	}
	if c.Providers == nil {
		c.Providers = make(map[string]Provider)
	}
}

// Validate checks provider ids, the strategy and numeric bounds.
func (c *Config) Validate() error {
	known := make(map[string]bool)
	for _, id := range imagepick.ProviderIDs() {
		known[id] = true
	}
	for id := range c.Providers {
		if !known[id] {
			return &imagepick.ConfigurationError{Reason: fmt.Sprintf("unknown provider %q", id)}
		}
	}
	for _, id := range c.SourcePriority {
		if !known[id] {
			return &imagepick.ConfigurationError{Reason: fmt.Sprintf("unknown provider %q in source_priority", id)}
		}
	}

	switch c.Ranking.Strategy {
	case imagepick.StrategyHeuristic:
	case imagepick.StrategyEmbedding:
		if c.Ranking.InferenceURL == "" {
			return &imagepick.ConfigurationError{Reason: "embedding strategy requires ranking.inference_url"}
		}
	default:
		return &imagepick.ConfigurationError{Reason: fmt.Sprintf("unknown ranking strategy %q", c.Ranking.Strategy)}
	}

	if c.MaxBytes < 0 || c.MinDimension < 0 || c.MaxCandidates < 0 || c.FetchWorkers < 0 ||
		c.TermWorkers < 0 || c.CandidatesPerProvider < 0 {
		return &imagepick.ConfigurationError{Reason: "numeric limits must not be negative"}
	}
	return nil
}

// ApplyTheme takes term_workers and candidates_per_provider from the theme
// when the config leaves them unset.
func (c *Config) ApplyTheme(th *Theme) {
	if c.TermWorkers <= 0 {
		c.TermWorkers = th.Workers
	}
	if c.CandidatesPerProvider <= 0 {
		c.CandidatesPerProvider = th.ImagesPerTerm
	}
}

// Options tweak Build for one invocation.
type Options struct {
	Strategy   string // overrides ranking.strategy when set
	OutputDir  string // overrides output_dir when set
	DryRun     bool   // no Sink: nothing is written
	HTTPClient *http.Client
}

// Built is the runtime wiring produced from a Config.
type Built struct {
	Config imagepick.Config
	// Close releases the cache connection, if any.
	Close func() error
}

// Build wires adapters, ranker, cache and sink into an imagepick.Config.
// The cache is Redis when cache.redis_addr is set, in-memory otherwise.
// Adapters are created in source priority order; disabled ones are left out.
func (c *Config) Build(ctx context.Context, opts Options) (*Built, error) {
	built := &Built{Close: func() error { return nil }}

	var store imagepick.Cache = cache.NewMemory(c.Cache.TTL.Duration)
	if c.Cache.RedisAddr != "" {
		r, err := cache.Dial(ctx, c.Cache.RedisAddr, c.Cache.TTL.Duration)
		if err != nil {
			return nil, &imagepick.ConfigurationError{Reason: fmt.Sprintf("redis %s: %v", c.Cache.RedisAddr, err)}
		}
		store = r
		built.Close = r.Close
	}

	adapters, err := c.adapters(store, opts.HTTPClient)
	if err != nil {
		_ = built.Close()
		return nil, err
	}

	ranker, err := c.ranker(opts, store)
	if err != nil {
		_ = built.Close()
		return nil, err
	}

	built.Config = imagepick.Config{
		Adapters:              adapters,
		Ranker:                ranker,
		HTTPClient:            opts.HTTPClient,
		UserAgent:             c.UserAgent,
		CandidatesPerProvider: c.CandidatesPerProvider,
		MaxCandidates:         c.MaxCandidates,
		FetchWorkers:          c.FetchWorkers,
		SearchTimeout:         c.SearchTimeout.Duration,
		FetchTimeout:          c.FetchTimeout.Duration,
		MaxBytes:              c.MaxBytes,
		MinDimension:          c.MinDimension,
		Retry:                 imagepick.RetryPolicy{MaxAttempts: c.RetryAttempts},
		Blocklist:             c.Blocklist,
		SourcePriority:        c.SourcePriority,
		ExtraBlockedDomains:   c.ExtraBlockedDomains,
		PerceptualDedup:       c.PerceptualDedup,
	}
	if !opts.DryRun {
		dir := c.OutputDir
		if opts.OutputDir != "" {
			dir = opts.OutputDir
		}
		built.Config.Sink = imagepick.DirSink{Dir: dir}
	}
	return built, nil
}

func (c *Config) adapters(store imagepick.Cache, client *http.Client) ([]imagepick.SourceAdapter, error) {
	order := append([]string(nil), c.SourcePriority...)
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		seen[id] = true
	}
	for _, id := range imagepick.ProviderIDs() {
		if !seen[id] {
			order = append(order, id)
		}
	}

	var out []imagepick.SourceAdapter
	for _, id := range order {
		p := c.Providers[id]
		if !p.enabled() {
			continue
		}
		a, err := imagepick.NewAdapter(id, imagepick.AdapterOptions{
			Credential:    p.Key,
			BaseURL:       p.BaseURL,
			HTTPClient:    client,
			UserAgent:     c.UserAgent,
			QueryTemplate: p.QueryTemplate,
			RatePerSecond: p.RatePerSecond,
			Cache:         store,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (c *Config) ranker(opts Options, store imagepick.Cache) (imagepick.Ranker, error) {
	strategy := c.Ranking.Strategy
	if opts.Strategy != "" {
		strategy = opts.Strategy
	}

	weights := imagepick.DefaultHeuristicWeights()
	for id, bonus := range c.Ranking.SourceBonus {
		weights.SourceBonus[id] = bonus
	}

	var inf imagepick.Inference
	if strategy == imagepick.StrategyEmbedding {
		if c.Ranking.InferenceURL == "" {
			return nil, &imagepick.ConfigurationError{Reason: "embedding strategy requires ranking.inference_url"}
		}
		inf = &imagepick.HTTPInference{
			BaseURL:    c.Ranking.InferenceURL,
			APIKey:     c.Ranking.InferenceKey,
			HTTPClient: opts.HTTPClient,
		}
	}

	r, err := imagepick.NewRanker(strategy, weights, inf)
	if err != nil {
		return nil, err
	}
	if er, ok := r.(*imagepick.EmbeddingRanker); ok {
		er.BatchSize = c.Ranking.BatchSize
		er.Timeout = c.Ranking.Timeout.Duration
		er.Cache = store
	}
	return r, nil
}

// ProviderStatus reports whether a provider would be queried.
type ProviderStatus struct {
	ID        string
	Enabled   bool
	Available bool
}

// ProviderStatuses lists every registered provider with its status, sorted by id.
func (c *Config) ProviderStatuses() []ProviderStatus {
	var out []ProviderStatus
	for _, id := range imagepick.ProviderIDs() {
		p := c.Providers[id]
		a, err := imagepick.NewAdapter(id, imagepick.AdapterOptions{Credential: p.Key})
		if err != nil {
			continue
		}
		out = append(out, ProviderStatus{ID: id, Enabled: p.enabled(), Available: p.enabled() && a.Available()})
	}
	return out
}

// getEnvOrDefault returns the env var value or the default.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := strings.TrimSpace(os.Getenv(envVar)); val != "" {
		return val
	}
	return defaultValue
}
