package imagepick

import (
	"context"
)

// HeuristicWeights are hand-tuned defaults, not derived constants; every value
// is configurable.
type HeuristicWeights struct {
	LargeSide       int // min(width, height) threshold for LargeBonus
	LargeBonus      float64
	SquareRatio     float64 // short/long side above which SquareBonus applies
	SquareBonus     float64
	NearSquareRatio float64 // short/long side above which NearSquareBonus applies
	NearSquareBonus float64
	SoftMaxBytes    int64 // files below this size get SmallFileBonus
	SmallFileBonus  float64
	SourceBonus     map[string]float64
}

// DefaultHeuristicWeights returns the weights the selection was tuned with.
func DefaultHeuristicWeights() HeuristicWeights {
	return HeuristicWeights{
		LargeSide:       800,
		LargeBonus:      2,
		SquareRatio:     0.8,
		SquareBonus:     3,
		NearSquareRatio: 0.6,
		NearSquareBonus: 1,
		SoftMaxBytes:    5 << 20,
		SmallFileBonus:  1,
		SourceBonus: map[string]float64{
			ProviderUnsplash:  4,
			ProviderPexels:    3,
			ProviderPixabay:   2,
			ProviderWikipedia: 2,
			ProviderWikimedia: 1,
		},
	}
}

// HeuristicRanker scores from dimensions, source and size only. It needs no
// network and is deterministic.
type HeuristicRanker struct {
	Weights HeuristicWeights
}

// NewHeuristicRanker returns a HeuristicRanker using w.
func NewHeuristicRanker(w HeuristicWeights) *HeuristicRanker {
	return &HeuristicRanker{Weights: w}
}

// Method implements Ranker.
func (h *HeuristicRanker) Method() string { return StrategyHeuristic }

// Score implements Ranker.
func (h *HeuristicRanker) Score(_ context.Context, c *FetchedCandidate, _ Term) float64 {
	w := h.Weights
	score := 0.0

	width, height := c.Dimensions()
	if width > 0 && height > 0 {
		short, long := width, height
		if short > long {
			short, long = long, short
		}
		if short >= w.LargeSide {
			score += w.LargeBonus
		}
		ratio := float64(short) / float64(long)
		switch {
		case ratio > w.SquareRatio:
			score += w.SquareBonus
		case ratio > w.NearSquareRatio:
			score += w.NearSquareBonus
		}
	}

	score += w.SourceBonus[c.SourceID]

	if size := c.Size(); size > 0 && size < w.SoftMaxBytes {
		score += w.SmallFileBonus
	}
	return score
}
