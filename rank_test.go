package imagepick

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func newFetched(source string, index, w, h, size int) *FetchedCandidate {
	return &FetchedCandidate{
		Candidate: Candidate{
			SourceID: source,
			URL:      "https://images.example.org/" + source + "/" + string(rune('a'+index)),
			Index:    index,
		},
		Data:        make([]byte, size),
		Format:      FormatJPEG,
		PixelWidth:  w,
		PixelHeight: h,
	}
}

func TestHeuristicRanker_Score(t *testing.T) {
	t.Parallel()

	r := NewHeuristicRanker(DefaultHeuristicWeights())
	tests := []struct {
		name string
		c    *FetchedCandidate
		want float64
	}{
		{name: "large square unsplash", c: newFetched(ProviderUnsplash, 0, 1000, 900, 1000), want: 2 + 3 + 4 + 1},
		{name: "large square pixabay", c: newFetched(ProviderPixabay, 0, 1000, 900, 1000), want: 2 + 3 + 2 + 1},
		{name: "small landscape wikimedia", c: newFetched(ProviderWikimedia, 0, 640, 480, 1000), want: 1 + 1 + 1},
		{name: "wide panorama pexels", c: newFetched(ProviderPexels, 0, 1600, 400, 1000), want: 3 + 1},
		{name: "threshold side exactly 800", c: newFetched(ProviderWikipedia, 0, 800, 800, 1000), want: 2 + 3 + 2 + 1},
		{name: "heavy file loses size bonus", c: newFetched(ProviderUnsplash, 0, 1000, 1000, 6<<20), want: 2 + 3 + 4},
		{name: "unknown source", c: newFetched("other", 0, 300, 300, 1000), want: 3 + 1},
		{name: "ratio exactly 0.8 gets near-square bonus", c: newFetched("other", 0, 1000, 800, 1000), want: 2 + 1 + 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := r.Score(context.Background(), tc.c, Term{Key: "eye"}); got != tc.want {
				t.Errorf("Score() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHeuristicRanker_FallsBackToProviderDimensions(t *testing.T) {
	t.Parallel()

	c := &FetchedCandidate{Candidate: Candidate{SourceID: "other", Width: 900, Height: 900, ByteSize: 10}}
	got := NewHeuristicRanker(DefaultHeuristicWeights()).Score(context.Background(), c, Term{})
	if got != 2+3+1 {
		t.Errorf("Score() = %v, want 6", got)
	}
}

func TestSelect_TieBreaks(t *testing.T) {
	t.Parallel()

	priority := DefaultSourcePriority
	scored := []ScoredCandidate{
		{FetchedCandidate: newFetched(ProviderWikimedia, 0, 1, 1, 1), Score: 5},
		{FetchedCandidate: newFetched(ProviderPexels, 3, 1, 1, 1), Score: 5},
		{FetchedCandidate: newFetched(ProviderPexels, 1, 1, 1, 1), Score: 5},
		{FetchedCandidate: newFetched(ProviderUnsplash, 2, 1, 1, 1), Score: 4},
		{FetchedCandidate: newFetched("unlisted", 4, 1, 1, 1), Score: 5},
	}

	ranked := Select(scored, priority)
	wantIdx := []int{1, 3, 0, 4, 2}
	for i, want := range wantIdx {
		if ranked[i].Index != want {
			t.Fatalf("ranked[%d].Index = %d, want %d (order %v)", i, ranked[i].Index, want, indices(ranked))
		}
	}
	if scored[0].Index != 0 {
		t.Error("Select must not reorder its input")
	}
}

func TestSelect_OrderIndependent(t *testing.T) {
	t.Parallel()

	var scored []ScoredCandidate
	for i := range 8 {
		src := DefaultSourcePriority[i%len(DefaultSourcePriority)]
		scored = append(scored, ScoredCandidate{FetchedCandidate: newFetched(src, i, 1, 1, 1), Score: float64(i % 3)})
	}
	want := indices(Select(scored, DefaultSourcePriority))

	rng := rand.New(rand.NewSource(1))
	for range 20 {
		shuffled := append([]ScoredCandidate(nil), scored...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		got := indices(Select(shuffled, DefaultSourcePriority))
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("order %v, want %v", got, want)
			}
		}
	}
}

func indices(sc []ScoredCandidate) []int {
	out := make([]int, len(sc))
	for i, s := range sc {
		out[i] = s.Index
	}
	return out
}

func TestNewRanker(t *testing.T) {
	t.Parallel()

	r, err := NewRanker("", DefaultHeuristicWeights(), nil)
	if err != nil || r.Method() != StrategyHeuristic {
		t.Errorf("default strategy = %v, %v", r, err)
	}
	if _, err := NewRanker(StrategyEmbedding, DefaultHeuristicWeights(), nil); !IsConfigurationError(err) {
		t.Errorf("embedding without inference: err = %v, want ConfigurationError", err)
	}
	r, err = NewRanker(StrategyEmbedding, DefaultHeuristicWeights(), &fakeInference{})
	if err != nil || r.Method() != StrategyEmbedding {
		t.Errorf("embedding strategy = %v, %v", r, err)
	}
	if _, err := NewRanker("random", DefaultHeuristicWeights(), nil); !IsConfigurationError(err) {
		t.Errorf("unknown strategy: err = %v, want ConfigurationError", err)
	}
}

// fakeInference returns logits[i][j] = first byte of image i + j, so images
// are told apart by their content.
type fakeInference struct {
	mu       sync.Mutex
	calls    []int // batch sizes
	failFrom int   // batches of at least this size fail (0 = never)
	failAll  bool
}

func (f *fakeInference) Similarity(_ context.Context, images [][]byte, prompts []string) ([][]float64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, len(images))
	f.mu.Unlock()
	if f.failAll || (f.failFrom > 0 && len(images) >= f.failFrom) {
		return nil, errors.New("inference down")
	}
	out := make([][]float64, len(images))
	for i, img := range images {
		row := make([]float64, len(prompts))
		for j := range prompts {
			row[j] = float64(img[0])
			if j == len(prompts)-1 {
				row[j] += 1
			}
		}
		out[i] = row
	}
	return out, nil
}

func imageWithByte(b byte, index int) *FetchedCandidate {
	return &FetchedCandidate{Candidate: Candidate{SourceID: "x", URL: "u", Index: index}, Data: []byte{b, 1, 2, 3}}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func TestEmbeddingRanker_Score(t *testing.T) {
	t.Parallel()

	r := NewEmbeddingRanker(&fakeInference{})
	got := r.Score(context.Background(), imageWithByte(10, 0), Term{Key: "eye"})
	// Best weighted logit: 10 * 1.3 beats (10+1) * 0.9.
	want := sigmoid(13.0 / 10)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Score() = %v, want %v", got, want)
	}
	if got <= 0 || got >= 1 {
		t.Errorf("Score() = %v, want within (0,1)", got)
	}
}

func TestEmbeddingRanker_Batches(t *testing.T) {
	t.Parallel()

	inf := &fakeInference{}
	r := NewEmbeddingRanker(inf)
	cs := make([]*FetchedCandidate, 10)
	for i := range cs {
		cs[i] = imageWithByte(byte(i), i)
	}

	scores, err := r.ScoreBatch(context.Background(), cs, Term{Key: "hand"})
	if err != nil {
		t.Fatalf("ScoreBatch: %v", err)
	}
	if want := []int{4, 4, 2}; len(inf.calls) != 3 || inf.calls[0] != want[0] || inf.calls[2] != want[2] {
		t.Errorf("batch sizes = %v, want %v", inf.calls, want)
	}
	for i := 1; i < len(scores); i++ {
		if scores[i] <= scores[i-1] {
			t.Errorf("scores not increasing with logits: %v", scores)
			break
		}
	}
}

func TestEmbeddingRanker_BatchFailureFallsBack(t *testing.T) {
	t.Parallel()

	inf := &fakeInference{failFrom: 2}
	r := NewEmbeddingRanker(inf)
	cs := []*FetchedCandidate{imageWithByte(5, 0), imageWithByte(9, 1)}

	scores, err := r.ScoreBatch(context.Background(), cs, Term{Key: "ear"})
	if err != nil {
		t.Fatalf("ScoreBatch: %v", err)
	}
	if scores[0] == NeutralScore || scores[1] == NeutralScore {
		t.Errorf("scores = %v, want per-candidate results", scores)
	}
	if len(inf.calls) != 3 {
		t.Errorf("calls = %v, want one failed batch then two single calls", inf.calls)
	}
}

func TestEmbeddingRanker_InferenceDownGivesNeutral(t *testing.T) {
	t.Parallel()

	r := NewEmbeddingRanker(&fakeInference{failAll: true})
	scores, err := r.ScoreBatch(context.Background(), []*FetchedCandidate{imageWithByte(5, 0)}, Term{Key: "ear"})
	if err != nil {
		t.Fatalf("ScoreBatch: %v", err)
	}
	if scores[0] != NeutralScore {
		t.Errorf("score = %v, want neutral", scores[0])
	}
}

func TestEmbeddingRanker_Cache(t *testing.T) {
	t.Parallel()

	inf := &fakeInference{}
	r := NewEmbeddingRanker(inf)
	r.Cache = newMapCache()
	c := imageWithByte(7, 0)

	first := r.Score(context.Background(), c, Term{Key: "nose"})
	second := r.Score(context.Background(), c, Term{Key: "nose"})
	if first != second {
		t.Errorf("cached score %v != %v", second, first)
	}
	if len(inf.calls) != 1 {
		t.Errorf("inference calls = %d, want 1", len(inf.calls))
	}
	r.Score(context.Background(), c, Term{Key: "mouth"})
	if len(inf.calls) != 2 {
		t.Errorf("a different query must not hit the cache")
	}
}

func TestHTTPInference(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/similarity" || r.Method != http.MethodPost {
			http.Error(w, "bad route", http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req similarityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logits := make([][]float64, len(req.Images))
		for i := range logits {
			logits[i] = make([]float64, len(req.Texts))
			logits[i][0] = float64(i + 1)
		}
		_ = json.NewEncoder(w).Encode(similarityResponse{LogitsPerImage: logits})
	}))
	defer srv.Close()

	h := &HTTPInference{BaseURL: srv.URL + "/", APIKey: "secret", HTTPClient: srv.Client()}
	got, err := h.Similarity(context.Background(), [][]byte{{1}, {2}}, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 3 || got[1][0] != 2 {
		t.Errorf("logits = %v", got)
	}

	h.APIKey = "wrong"
	if _, err := h.Similarity(context.Background(), [][]byte{{1}}, []string{"a"}); err == nil {
		t.Error("expected error for 401")
	}
}
