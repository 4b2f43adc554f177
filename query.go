package imagepick

import (
	"strings"
)

// QueryPlaceholder is replaced by the term key in a provider query template.
const QueryPlaceholder = "{query}"

// maxQueryWords is the maximum number of words sent to a provider.
const maxQueryWords = 8

// BuildQuery renders template with key and normalises the result: trims
// punctuation around words, collapses whitespace and caps the word count.
// An empty template means the bare key; a template without the placeholder
// gets the key appended.
func BuildQuery(template, key string) string {
	key = strings.TrimSpace(key)
	var raw string
	switch {
	case strings.TrimSpace(template) == "":
		raw = key
	case strings.Contains(template, QueryPlaceholder):
		raw = strings.ReplaceAll(template, QueryPlaceholder, key)
	default:
		raw = template + " " + key
	}

	var words []string
	for _, w := range strings.Fields(raw) {
		w = strings.Trim(w, ".,;:!?\"'()[]{}«»—–")
		if w == "" {
			continue
		}
		words = append(words, w)
	}
	if len(words) > maxQueryWords {
		words = words[:maxQueryWords]
	}
	return strings.Join(words, " ")
}
