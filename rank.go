package imagepick

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Ranking strategy names.
const (
	StrategyHeuristic = "heuristic"
	StrategyEmbedding = "embedding"
)

// Ranker scores a validated candidate against a term. Higher is better and
// scores of one Ranker are comparable across candidates of the same term.
type Ranker interface {
	Method() string
	Score(ctx context.Context, c *FetchedCandidate, term Term) float64
}

// BatchRanker scores several candidates in one call. The orchestrator falls
// back to Score per candidate when ScoreBatch fails.
type BatchRanker interface {
	Ranker
	ScoreBatch(ctx context.Context, cs []*FetchedCandidate, term Term) ([]float64, error)
}

// NewRanker returns the ranker for strategy. The embedding strategy needs a
// non-nil Inference.
func NewRanker(strategy string, weights HeuristicWeights, inf Inference) (Ranker, error) {
	switch strategy {
	case "", StrategyHeuristic:
		return NewHeuristicRanker(weights), nil
	case StrategyEmbedding:
		if inf == nil {
			return nil, &ConfigurationError{Reason: "embedding strategy requires an inference backend"}
		}
		return NewEmbeddingRanker(inf), nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown ranking strategy %q", strategy)}
	}
}

// scoreAll scores cs in order, batching when the ranker supports it.
func scoreAll(ctx context.Context, r Ranker, cs []*FetchedCandidate, term Term) []float64 {
	if len(cs) == 0 {
		return nil
	}
	if br, ok := r.(BatchRanker); ok {
		scores, err := br.ScoreBatch(ctx, cs, term)
		if err == nil && len(scores) == len(cs) {
			return scores
		}
		slog.Warn("imagepick: batch scoring failed, scoring individually",
			"term", term.Key, "method", r.Method(), "error", fmt.Sprint(err))
	}
	scores := make([]float64, len(cs))
	for i, c := range cs {
		scores[i] = r.Score(ctx, c, term)
	}
	return scores
}

// Select orders scored candidates best first: highest score, then source
// priority (earlier in priority wins, unknown sources last), then discovery
// order. It depends only on its inputs, never on arrival order.
func Select(scored []ScoredCandidate, priority []string) []ScoredCandidate {
	rank := make(map[string]int, len(priority))
	for i, p := range priority {
		if _, ok := rank[p]; !ok {
			rank[p] = i
		}
	}
	prio := func(source string) int {
		if r, ok := rank[source]; ok {
			return r
		}
		return len(priority)
	}

	ranked := make([]ScoredCandidate, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if pa, pb := prio(a.SourceID), prio(b.SourceID); pa != pb {
			return pa < pb
		}
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.URL < b.URL
	})
	return ranked
}
