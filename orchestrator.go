package imagepick

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Term pipeline states, logged at debug level on every transition.
const (
	stateSearching  = "searching"
	stateFetching   = "fetching"
	stateValidating = "validating"
	stateScoring    = "scoring"
)

// Orchestrator runs the acquisition pipeline for one term at a time:
// search, prefilter, fetch, validate, score, select. It is safe for
// concurrent use by several terms.
type Orchestrator struct {
	cfg       Config
	fetcher   *Fetcher
	validator *Validator
}

// NewOrchestrator copies cfg and fills defaults.
func NewOrchestrator(cfg Config) *Orchestrator {
	cfg.defaults()
	cfg.Adapters = append([]SourceAdapter(nil), cfg.Adapters...)
	return &Orchestrator{
		cfg: cfg,
		fetcher: &Fetcher{
			Client:    cfg.HTTPClient,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.FetchTimeout,
			MaxBytes:  cfg.MaxBytes,
			Retry:     cfg.Retry,
		},
		validator: &Validator{
			MaxBytes:            cfg.MaxBytes,
			MinDimension:        cfg.MinDimension,
			Blocklist:           cfg.Blocklist,
			ExtraBlockedDomains: cfg.ExtraBlockedDomains,
		},
	}
}

// Method returns the ranking method of the configured Ranker.
func (o *Orchestrator) Method() string { return o.cfg.Ranker.Method() }

// Validator returns the validator used for fetched payloads.
func (o *Orchestrator) Validator() *Validator { return o.validator }

// Run processes one term. It never fails: a term without any valid
// candidate comes back with State == StateEmpty.
func (o *Orchestrator) Run(ctx context.Context, term Term) SelectionResult {
	res := emptyResult(term)
	log := slog.With("term", term.Key)

	log.Debug("imagepick: term state", "state", stateSearching)
	cands := o.search(ctx, term)
	res.Searched = len(cands)

	cands, rejected := prefilter(cands, term.Key, o.cfg.ExtraBlockedDomains)
	res.Rejections = append(res.Rejections, rejected...)
	if len(cands) > o.cfg.MaxCandidates {
		cands = cands[:o.cfg.MaxCandidates]
	}
	if len(cands) == 0 {
		log.Debug("imagepick: term state", "state", StateEmpty, "searched", res.Searched)
		return res
	}

	log.Debug("imagepick: term state", "state", stateFetching, "candidates", len(cands))
	fetched, rejected := o.fetchAll(ctx, cands)
	res.Fetched = len(fetched)
	res.Rejections = append(res.Rejections, rejected...)

	log.Debug("imagepick: term state", "state", stateValidating, "fetched", len(fetched))
	valid, rejected := o.validateAll(fetched)
	res.Validated = len(valid)
	res.Rejections = append(res.Rejections, rejected...)
	if len(valid) == 0 {
		log.Debug("imagepick: term state", "state", StateEmpty, "rejections", len(res.Rejections))
		return res
	}

	log.Debug("imagepick: term state", "state", stateScoring, "validated", len(valid))
	scores := scoreAll(ctx, o.cfg.Ranker, valid, term)
	scored := make([]ScoredCandidate, len(valid))
	for i, fc := range valid {
		scored[i] = ScoredCandidate{
			FetchedCandidate: fc,
			Score:            scores[i],
			Method:           o.cfg.Ranker.Method(),
			Filename:         Filename(term, fc),
		}
	}

	ranked := Select(scored, o.cfg.SourcePriority)
	winner := ranked[0]
	res.State = StateSelected
	res.ChosenFilename = winner.Filename
	res.Score = winner.Score
	res.Method = winner.Method
	res.Source = winner.SourceID
	res.URL = winner.URL
	res.Winner = &winner
	for _, alt := range ranked[1:] {
		res.Alternates = append(res.Alternates, alt.Filename)
	}
	log.Debug("imagepick: term state", "state", StateSelected,
		"chosen", winner.Filename, "score", winner.Score, "alternates", len(res.Alternates))

	o.store(ctx, ranked)
	return res
}

// search queries every available adapter concurrently and merges the
// results in adapter order.
func (o *Orchestrator) search(ctx context.Context, term Term) []Candidate {
	perAdapter := make([][]Candidate, len(o.cfg.Adapters))

	var g errgroup.Group
	for i, a := range o.cfg.Adapters {
		if !a.Available() {
			slog.Debug("imagepick: provider unavailable", "provider", a.ID(), "term", term.Key)
			continue
		}
		g.Go(func() error {
			defer o.cfg.recoverPanic("search:" + a.ID())
			sctx, cancel := context.WithTimeout(ctx, o.cfg.SearchTimeout)
			defer cancel()
			perAdapter[i] = a.Search(sctx, term.Key, o.cfg.CandidatesPerProvider)
			return nil
		})
	}
	_ = g.Wait()

	return mergeCandidates(perAdapter)
}

type fetchOutcome struct {
	fc  *FetchedCandidate
	rej *Rejection
}

// fetchAll downloads candidate bytes through a pool of FetchWorkers.
// Outcomes are kept in candidate order regardless of completion order.
// Once ctx is done no new fetch is started.
func (o *Orchestrator) fetchAll(ctx context.Context, cands []Candidate) ([]*FetchedCandidate, []Rejection) {
	outcomes := make([]fetchOutcome, len(cands))

	var g errgroup.Group
	g.SetLimit(o.cfg.FetchWorkers)
	for i, c := range cands {
		if ctx.Err() != nil {
			rej := newRejection(c, StageFetch, ReasonCancelled, ctx.Err().Error())
			outcomes[i] = fetchOutcome{rej: &rej}
			continue
		}
		g.Go(func() error {
			panicked := newRejection(c, StageFetch, ReasonPanic, "")
			outcomes[i] = fetchOutcome{rej: &panicked}
			defer o.cfg.recoverPanic("fetch")

			fc, err := o.fetcher.Fetch(ctx, c)
			if err != nil {
				reason := ReasonFetchFailed
				if errors.Is(err, ErrTooLarge) {
					reason = ReasonTooLarge
				}
				slog.Debug("imagepick: fetch failed", "url", c.URL, "error", err.Error())
				rej := newRejection(c, StageFetch, reason, err.Error())
				outcomes[i] = fetchOutcome{rej: &rej}
				return nil
			}
			outcomes[i] = fetchOutcome{fc: fc}
			return nil
		})
	}
	_ = g.Wait()

	var fetched []*FetchedCandidate
	var rejected []Rejection
	for _, out := range outcomes {
		if out.fc != nil {
			fetched = append(fetched, out.fc)
		} else if out.rej != nil {
			rejected = append(rejected, *out.rej)
		}
	}
	return fetched, rejected
}

// validateAll runs the Validator and the optional perceptual dedup in
// discovery order, so the earliest copy of a duplicate survives.
func (o *Orchestrator) validateAll(fetched []*FetchedCandidate) ([]*FetchedCandidate, []Rejection) {
	var dedup *dedupFilter
	if o.cfg.PerceptualDedup {
		dedup = &dedupFilter{}
	}

	var valid []*FetchedCandidate
	var rejected []Rejection
	for _, fc := range fetched {
		v := o.validator.Validate(fc.Data, fc.Candidate)
		if !v.Accepted {
			slog.Debug("imagepick: candidate rejected", "url", fc.URL, "verdict", v.String())
			rejected = append(rejected, newRejection(fc.Candidate, StageValidate, v.Reason, v.Detail))
			continue
		}
		fc.Format = v.Format
		fc.PixelWidth, fc.PixelHeight = v.Width, v.Height
		fc.Meta = v.Meta

		if dedup != nil && dedup.isDuplicate(fc.Data) {
			slog.Debug("imagepick: dedup rejected", "url", fc.URL)
			rejected = append(rejected, newRejection(fc.Candidate, StageDedup, ReasonDuplicate, ""))
			continue
		}
		valid = append(valid, fc)
	}
	return valid, rejected
}

// store hands the ranked candidates to the Sink. Failures are logged only.
func (o *Orchestrator) store(ctx context.Context, ranked []ScoredCandidate) {
	if o.cfg.Sink == nil {
		return
	}
	for _, sc := range ranked {
		if err := o.cfg.Sink.Store(ctx, sc.Filename, sc.Data); err != nil {
			slog.Warn("imagepick: store image failed", "file", sc.Filename, "error", err.Error())
		}
	}
}
