package imagepick

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Inference computes image/text similarity logits: result[i][j] is the score
// of images[i] against prompts[j].
type Inference interface {
	Similarity(ctx context.Context, images [][]byte, prompts []string) ([][]float64, error)
}

// PromptVariant is one framing of the query; Template takes the query via %s.
type PromptVariant struct {
	Template string
	Weight   float64
}

// DefaultPromptVariants favour quality-framed prompts over the bare query.
var DefaultPromptVariants = []PromptVariant{
	{Template: "professional photo of %s", Weight: 1.3},
	{Template: "high quality image of %s", Weight: 1.2},
	{Template: "clean %s", Weight: 1.1},
	{Template: "clear %s", Weight: 1.0},
	{Template: "good %s", Weight: 1.0},
	{Template: "%s", Weight: 0.9},
}

const (
	// DefaultEmbeddingBatchSize is the number of images sent per inference call.
	DefaultEmbeddingBatchSize = 4
	// DefaultInferenceTimeout bounds one inference call.
	DefaultInferenceTimeout = 30 * time.Second
	// NeutralScore is assigned when inference is unavailable for a candidate.
	NeutralScore = 0.0

	logitTemperature = 10.0
)

var errInferenceShape = errors.New("imagepick: inference returned unexpected shape")

// EmbeddingRanker scores candidates by vision-language similarity between the
// image and prompt variants of the term, squashed into [0,1].
type EmbeddingRanker struct {
	Inference Inference
	BatchSize int             // default DefaultEmbeddingBatchSize
	Prompts   []PromptVariant // default DefaultPromptVariants
	Timeout   time.Duration   // per inference call, default DefaultInferenceTimeout
	Cache     Cache           // optional: scores keyed by image hash and query
}

// NewEmbeddingRanker returns an EmbeddingRanker with default prompts and batch size.
func NewEmbeddingRanker(inf Inference) *EmbeddingRanker {
	return &EmbeddingRanker{Inference: inf}
}

// Method implements Ranker.
func (r *EmbeddingRanker) Method() string { return StrategyEmbedding }

// Score implements Ranker. Inference failures yield NeutralScore.
func (r *EmbeddingRanker) Score(ctx context.Context, c *FetchedCandidate, term Term) float64 {
	if s, ok := r.cached(ctx, c, term); ok {
		return s
	}
	scores, err := r.infer(ctx, []*FetchedCandidate{c}, term)
	if err != nil {
		slog.Warn("imagepick: inference failed, using neutral score",
			"term", term.Key, "url", c.URL, "error", err.Error())
		return NeutralScore
	}
	r.store(ctx, c, term, scores[0])
	return scores[0]
}

// ScoreBatch implements BatchRanker. A failed batch is retried one candidate
// at a time, so it never returns an error.
func (r *EmbeddingRanker) ScoreBatch(ctx context.Context, cs []*FetchedCandidate, term Term) ([]float64, error) {
	out := make([]float64, len(cs))

	var pending []int
	for i, c := range cs {
		if s, ok := r.cached(ctx, c, term); ok {
			out[i] = s
			continue
		}
		pending = append(pending, i)
	}

	size := r.BatchSize
	if size <= 0 {
		size = DefaultEmbeddingBatchSize
	}
	for start := 0; start < len(pending); start += size {
		end := min(start+size, len(pending))
		idx := pending[start:end]
		batch := make([]*FetchedCandidate, len(idx))
		for k, i := range idx {
			batch[k] = cs[i]
		}

		scores, err := r.infer(ctx, batch, term)
		if err != nil {
			slog.Warn("imagepick: batch inference failed, scoring individually",
				"term", term.Key, "batch", len(batch), "error", err.Error())
			for k, i := range idx {
				out[i] = r.Score(ctx, batch[k], term)
			}
			continue
		}
		for k, i := range idx {
			out[i] = scores[k]
			r.store(ctx, batch[k], term, scores[k])
		}
	}
	return out, nil
}

func (r *EmbeddingRanker) prompts(query string) ([]string, []float64) {
	variants := r.Prompts
	if len(variants) == 0 {
		variants = DefaultPromptVariants
	}
	texts := make([]string, len(variants))
	weights := make([]float64, len(variants))
	for i, v := range variants {
		texts[i] = fmt.Sprintf(v.Template, query)
		weights[i] = v.Weight
	}
	return texts, weights
}

func (r *EmbeddingRanker) infer(ctx context.Context, batch []*FetchedCandidate, term Term) ([]float64, error) {
	if r.Inference == nil {
		return nil, errors.New("imagepick: no inference backend")
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultInferenceTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	texts, weights := r.prompts(term.Key)
	images := make([][]byte, len(batch))
	for i, c := range batch {
		images[i] = c.Data
	}

	logits, err := r.Inference.Similarity(ctx, images, texts)
	if err != nil {
		return nil, err
	}
	if len(logits) != len(batch) {
		return nil, fmt.Errorf("%w: %d rows for %d images", errInferenceShape, len(logits), len(batch))
	}

	scores := make([]float64, len(batch))
	for i, row := range logits {
		if len(row) != len(weights) {
			return nil, fmt.Errorf("%w: %d columns for %d prompts", errInferenceShape, len(row), len(weights))
		}
		scores[i] = weightedSimilarity(row, weights)
	}
	return scores, nil
}

// weightedSimilarity takes the maximum weighted logit and squashes it into
// [0,1] with a logistic curve.
func weightedSimilarity(logits, weights []float64) float64 {
	best := math.Inf(-1)
	for j, l := range logits {
		if v := l * weights[j]; v > best {
			best = v
		}
	}
	return 1 / (1 + math.Exp(-best/logitTemperature))
}

func (r *EmbeddingRanker) cacheKey(c *FetchedCandidate, term Term) string {
	sum := sha256.Sum256(c.Data)
	return r.Cache.Key("embedding", hex.EncodeToString(sum[:])+"|"+term.Key)
}

func (r *EmbeddingRanker) cached(ctx context.Context, c *FetchedCandidate, term Term) (float64, bool) {
	if r.Cache == nil {
		return 0, false
	}
	var s float64
	if r.Cache.Get(ctx, r.cacheKey(c, term), &s) {
		return s, true
	}
	return 0, false
}

func (r *EmbeddingRanker) store(ctx context.Context, c *FetchedCandidate, term Term, score float64) {
	if r.Cache != nil {
		r.Cache.Set(ctx, r.cacheKey(c, term), score)
	}
}
