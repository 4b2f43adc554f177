package imagepick

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Selection states.
const (
	StateSelected = "selected"
	StateEmpty    = "empty"
)

// SelectionResult is the outcome for one term. An empty result has
// State == StateEmpty and no ChosenFilename.
type SelectionResult struct {
	Term           string            `json:"term"`
	Labels         map[string]string `json:"labels,omitempty"`
	State          string            `json:"state"`
	ChosenFilename string            `json:"chosen_filename"`
	Score          float64           `json:"score"`
	Method         string            `json:"method,omitempty"`
	Source         string            `json:"source,omitempty"`
	URL            string            `json:"url,omitempty"`
	Alternates     []string          `json:"alternates"`
	Rejections     []Rejection       `json:"rejections,omitempty"`

	Searched  int `json:"searched"`
	Fetched   int `json:"fetched"`
	Validated int `json:"validated"`

	// Winner is the selected candidate with its bytes. Not serialised.
	Winner *ScoredCandidate `json:"-"`
}

// Empty reports whether no candidate was selected.
func (r SelectionResult) Empty() bool { return r.State != StateSelected }

func emptyResult(term Term) SelectionResult {
	return SelectionResult{
		Term:       term.Key,
		Labels:     term.Labels,
		State:      StateEmpty,
		Alternates: []string{},
	}
}

// Manifest maps every term of a batch to its SelectionResult. It is safe for
// concurrent use.
type Manifest struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Strategy  string    `json:"strategy"`

	mu      sync.Mutex
	entries map[string]SelectionResult
}

type manifestJSON struct {
	RunID     string                     `json:"run_id"`
	CreatedAt time.Time                  `json:"created_at"`
	Strategy  string                     `json:"strategy"`
	Entries   map[string]SelectionResult `json:"entries"`
}

// NewManifest returns an empty manifest with a fresh run id.
func NewManifest(strategy string) *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Strategy:  strategy,
		entries:   make(map[string]SelectionResult),
	}
}

// Put records the result for its term, replacing any earlier one.
func (m *Manifest) Put(r SelectionResult) {
	if r.Alternates == nil {
		r.Alternates = []string{}
	}
	m.mu.Lock()
	m.entries[r.Term] = r
	m.mu.Unlock()
}

// Get returns the result for term.
func (m *Manifest) Get(term string) (SelectionResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.entries[term]
	return r, ok
}

// Len returns the number of recorded terms.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Terms returns the recorded term keys, sorted.
func (m *Manifest) Terms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	terms := make([]string, 0, len(m.entries))
	for t := range m.entries {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Results returns the results ordered by term key.
func (m *Manifest) Results() []SelectionResult {
	terms := m.Terms()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SelectionResult, 0, len(terms))
	for _, t := range terms {
		out = append(out, m.entries[t])
	}
	return out
}

// Selected counts terms with a winner.
func (m *Manifest) Selected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.entries {
		if !r.Empty() {
			n++
		}
	}
	return n
}

// EmptyTerms returns the sorted keys of terms without a winner.
func (m *Manifest) EmptyTerms() []string {
	var out []string
	for _, r := range m.Results() {
		if r.Empty() {
			out = append(out, r.Term)
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return json.Marshal(manifestJSON{
		RunID:     m.RunID,
		CreatedAt: m.CreatedAt,
		Strategy:  m.Strategy,
		Entries:   m.entries,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw manifestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunID, m.CreatedAt, m.Strategy = raw.RunID, raw.CreatedAt, raw.Strategy
	m.entries = raw.Entries
	if m.entries == nil {
		m.entries = make(map[string]SelectionResult)
	}
	return nil
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("imagepick: encode manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // manifest is not secret
		return fmt.Errorf("imagepick: write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("imagepick: read manifest: %w", err)
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("imagepick: parse manifest: %w", err)
	}
	return m, nil
}
