package imagepick

import (
	"fmt"
	"strings"
	"unicode"
)

// Term is the unit of work: a search key plus display labels per language.
type Term struct {
	Key    string            `json:"key" yaml:"key"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels"`
}

// Label returns the display label for lang, or Key when none is set.
func (t Term) Label(lang string) string {
	if l := strings.TrimSpace(t.Labels[lang]); l != "" {
		return l
	}
	return t.Key
}

// Slug returns a filesystem-safe, lower-case form of Key.
func (t Term) Slug() string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(t.Key)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	s := strings.TrimRight(b.String(), "_")
	if s == "" {
		return "term"
	}
	return s
}

// Candidate is image metadata discovered by a SourceAdapter. Bytes are not
// fetched yet; fields the provider does not report stay zero.
type Candidate struct {
	SourceID    string `json:"source_id"`
	URL         string `json:"url"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	ByteSize    int64  `json:"byte_size,omitempty"`

	// Index is the first-discovered position within one term's merged list.
	Index int `json:"-"`
}

// CandidateKey identifies a Candidate within one term's batch.
type CandidateKey struct {
	SourceID string
	URL      string
}

// Key returns the (source, url) identity of the candidate.
func (c Candidate) Key() CandidateKey {
	return CandidateKey{SourceID: c.SourceID, URL: c.URL}
}

// FetchedCandidate is a Candidate with its raw bytes. Data must not be
// modified once the candidate has been validated.
type FetchedCandidate struct {
	Candidate
	Data   []byte
	Format Format

	// Filled in by validation from the decoded header and embedded metadata.
	PixelWidth  int
	PixelHeight int
	Meta        *ImageMetadata
}

// Dimensions prefers decoded pixel dimensions over provider metadata.
func (fc *FetchedCandidate) Dimensions() (width, height int) {
	if fc.PixelWidth > 0 && fc.PixelHeight > 0 {
		return fc.PixelWidth, fc.PixelHeight
	}
	return fc.Width, fc.Height
}

// Size returns the payload size, falling back to the provider-reported size.
func (fc *FetchedCandidate) Size() int64 {
	if len(fc.Data) > 0 {
		return int64(len(fc.Data))
	}
	return fc.ByteSize
}

// ScoredCandidate is a validated candidate with its ranking score.
type ScoredCandidate struct {
	*FetchedCandidate
	Score    float64
	Method   string
	Filename string
}

// Filename names the stored image: <slug>_<source>_<n><ext>, n being the
// 1-based discovery position.
func Filename(term Term, fc *FetchedCandidate) string {
	return fmt.Sprintf("%s_%s_%d%s", term.Slug(), fc.SourceID, fc.Index+1, fc.Format.Extension())
}

// mergeCandidates flattens per-adapter results in adapter order, drops
// duplicates by (source, url) and assigns discovery indices.
func mergeCandidates(perAdapter [][]Candidate) []Candidate {
	seen := make(map[CandidateKey]struct{})
	var merged []Candidate
	for _, list := range perAdapter {
		for _, c := range list {
			if c.URL == "" {
				continue
			}
			if _, dup := seen[c.Key()]; dup {
				continue
			}
			seen[c.Key()] = struct{}{}
			c.Index = len(merged)
			merged = append(merged, c)
		}
	}
	return merged
}
