package imagepick

import (
	"net/url"
	"strings"
)

// LogoBannerPatterns are URL tokens indicating non-photo images. They match
// whole tokens of the host and path, singular or plural.
var LogoBannerPatterns = []string{
	"favicon", "logo", "banner", "sprite",
	"badge", "button", "widget", "avatar",
}

// IsLogoOrBanner reports whether rawURL names a logo, icon or UI asset.
// Patterns occurring in termKey are skipped, so a search for "button"
// keeps pictures of buttons.
func IsLogoOrBanner(rawURL, termKey string) bool {
	target := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		target = u.Host + u.Path
	}
	target = strings.ToLower(target)
	key := strings.ToLower(termKey)

	for _, p := range LogoBannerPatterns {
		if containsWord(key, p) || containsWord(key, p+"s") {
			continue
		}
		if containsWord(target, p) || containsWord(target, p+"s") {
			return true
		}
	}
	return false
}

// prefilter drops candidates that can be rejected from metadata alone, before
// any bytes are fetched.
func prefilter(cands []Candidate, termKey string, extraBlocked []string) ([]Candidate, []Rejection) {
	kept := cands[:0:0]
	var rejected []Rejection
	for _, c := range cands {
		var reason RejectReason
		switch {
		case IsStockURL(c.URL, extraBlocked):
			reason = ReasonStock
		case IsLogoOrBanner(c.URL, termKey):
			reason = ReasonLogo
		default:
			kept = append(kept, c)
			continue
		}
		rejected = append(rejected, newRejection(c, StagePrefilter, reason, ""))
	}
	return kept, rejected
}
