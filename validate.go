package imagepick

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"unicode"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Verdict is the outcome of validating one payload.
type Verdict struct {
	Accepted bool
	Reason   RejectReason
	Detail   string
	Format   Format
	Width    int
	Height   int
	Meta     *ImageMetadata
}

func (v Verdict) String() string {
	if v.Accepted {
		return fmt.Sprintf("accept %s %dx%d", v.Format, v.Width, v.Height)
	}
	if v.Detail != "" {
		return fmt.Sprintf("reject: %s (%s)", v.Reason, v.Detail)
	}
	return "reject: " + string(v.Reason)
}

func reject(reason RejectReason, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

// Validator accepts or rejects fetched payloads. Validate is a pure function
// of its inputs and the Validator fields.
type Validator struct {
	MaxBytes            int64    // 0 = DefaultMaxBytes
	MinDimension        int      // 0 = DefaultMinDimension
	Blocklist           []string // matched on word boundaries, case-insensitive
	ExtraBlockedDomains []string
}

// Validate applies, in order: format sniff, byte-size bounds, pixel floor,
// lexical safety filter, stock check. The first failing rule wins.
// Never panics; a decoder panic is reported as ReasonDecode.
func (v *Validator) Validate(data []byte, c Candidate) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = reject(ReasonDecode, fmt.Sprint(r))
		}
	}()

	maxBytes := v.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	minDim := v.MinDimension
	if minDim <= 0 {
		minDim = DefaultMinDimension
	}

	// 1. Format, from content only.
	if len(data) == 0 {
		return reject(ReasonEmpty, "")
	}
	format := Sniff(data)
	if format.IsVector() {
		return reject(ReasonVector, string(format))
	}
	if !format.IsRaster() {
		return reject(ReasonUnknownFormat, "")
	}

	// 2. Size.
	if int64(len(data)) > maxBytes {
		return reject(ReasonTooLarge, fmt.Sprintf("%d > %d bytes", len(data), maxBytes))
	}

	// 3. Pixel floor.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return reject(ReasonDecode, err.Error())
	}
	if cfg.Width < minDim || cfg.Height < minDim {
		return reject(ReasonTooSmall, fmt.Sprintf("%dx%d < %d", cfg.Width, cfg.Height, minDim))
	}

	// 4. Lexical safety over provider text and embedded metadata.
	meta := ExtractImageMetadata(data)
	text := strings.ToLower(strings.Join([]string{c.Description, c.Author, meta.Text()}, " "))
	if term := matchBlocklist(text, v.Blocklist); term != "" {
		return reject(ReasonBlockedTerm, term)
	}

	// 5. Stock agency fingerprints.
	if agency := StockAgencyInMetadata(meta); agency != "" {
		return reject(ReasonStock, agency)
	}
	if IsStockURL(c.URL, v.ExtraBlockedDomains) {
		return reject(ReasonStock, c.URL)
	}

	return Verdict{
		Accepted: true,
		Format:   format,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Meta:     meta,
	}
}

// matchBlocklist returns the first blocklist term found in lower-cased text
// on word boundaries, or "".
func matchBlocklist(text string, blocklist []string) string {
	for _, term := range blocklist {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if containsWord(text, term) {
			return term
		}
	}
	return ""
}

func containsWord(text, word string) bool {
	for offset := 0; offset <= len(text)-len(word); {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if isBoundary(text, start-1) && isBoundary(text, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

// isBoundary reports whether the byte at i is outside text or not part of a word.
func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	r := rune(text[i])
	if r >= 0x80 {
		// Multi-byte runes: treat continuation bytes as word characters.
		return false
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
