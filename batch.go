package imagepick

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// BatchRunner processes a list of terms through an Orchestrator with a
// fixed pool of term workers and collects the results in a Manifest.
type BatchRunner struct {
	o       *Orchestrator
	workers int
}

// NewBatchRunner returns a runner with the given number of term workers.
// workers <= 0 means min(len(terms), DefaultTermWorkers).
func NewBatchRunner(o *Orchestrator, workers int) *BatchRunner {
	return &BatchRunner{o: o, workers: workers}
}

// ValidateTerms returns a *ConfigurationError when terms is empty, holds a
// blank or duplicated key, or two keys share a Slug and would write the
// same files.
func ValidateTerms(terms []Term) error {
	if len(terms) == 0 {
		return &ConfigurationError{Reason: "no terms supplied"}
	}
	seen := make(map[string]int, len(terms))
	slugs := make(map[string]int, len(terms))
	for i, t := range terms {
		key := strings.TrimSpace(t.Key)
		if key == "" {
			return &ConfigurationError{Reason: fmt.Sprintf("term %d has an empty key", i)}
		}
		if j, dup := seen[key]; dup {
			return &ConfigurationError{Reason: fmt.Sprintf("term %q appears at %d and %d", key, j, i)}
		}
		seen[key] = i

		slug := t.Slug()
		if j, dup := slugs[slug]; dup {
			return &ConfigurationError{Reason: fmt.Sprintf("terms %q and %q both map to file names %q",
				strings.TrimSpace(terms[j].Key), key, slug)}
		}
		slugs[slug] = i
	}
	return nil
}

// Run processes every term and returns the manifest. The only error is a
// *ConfigurationError, returned before any network activity. When ctx is
// cancelled no further term is dispatched; undispatched terms are recorded
// as empty with a cancelled rejection, so the manifest always holds every term.
func (b *BatchRunner) Run(ctx context.Context, terms []Term) (*Manifest, error) {
	if err := ValidateTerms(terms); err != nil {
		return nil, err
	}
	if len(b.o.cfg.Adapters) == 0 {
		return nil, &ConfigurationError{Reason: "no source adapters configured"}
	}

	workers := b.workers
	if workers <= 0 {
		workers = DefaultTermWorkers
	}
	workers = min(workers, len(terms))

	m := NewManifest(b.o.Method())
	slog.Info("imagepick: batch started", "run_id", m.RunID, "terms", len(terms), "workers", workers)

	jobs := make(chan Term)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				b.record(m, b.runTerm(ctx, t))
			}
		}()
	}

dispatch:
	for i, t := range terms {
		if ctx.Err() != nil {
			b.cancelRemaining(ctx, m, terms[i:])
			break
		}
		select {
		case jobs <- t:
		case <-ctx.Done():
			b.cancelRemaining(ctx, m, terms[i:])
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	slog.Info("imagepick: batch finished", "run_id", m.RunID,
		"terms", m.Len(), "selected", m.Selected(), "empty", m.Len()-m.Selected())
	return m, nil
}

// runTerm runs one term; a panic yields an empty result for that term only.
func (b *BatchRunner) runTerm(ctx context.Context, t Term) (res SelectionResult) {
	defer func() {
		if r := recover(); r != nil {
			b.o.cfg.reportPanic("term:"+t.Key, r)
			res = emptyResult(t)
			res.Rejections = []Rejection{{Stage: StageBatch, Reason: ReasonPanic, Detail: fmt.Sprint(r)}}
		}
	}()
	return b.o.Run(ctx, t)
}

func (b *BatchRunner) cancelRemaining(ctx context.Context, m *Manifest, rest []Term) {
	slog.Warn("imagepick: batch cancelled", "undispatched", len(rest), "error", ctx.Err().Error())
	for _, t := range rest {
		res := emptyResult(t)
		res.Rejections = []Rejection{{Stage: StageBatch, Reason: ReasonCancelled, Detail: ctx.Err().Error()}}
		b.record(m, res)
	}
}

func (b *BatchRunner) record(m *Manifest, res SelectionResult) {
	m.Put(res)
	if b.o.cfg.OnTermDone != nil {
		b.o.cfg.OnTermDone(res)
	}
}
