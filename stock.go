package imagepick

import (
	"net/url"
	"strings"
)

// StockDomains are host fragments of stock agencies. Their images are
// licensed per use and never selected.
var StockDomains = []string{
	// Getty group
	"gettyimages", "istockphoto", "thinkstockphotos",
	// large agencies
	"shutterstock", "adobestock", "alamy", "depositphotos", "dreamstime",
	"123rf", "bigstockphoto", "canstockphoto", "stocksy", "eyeem",
	"masterfile", "superstock", "agefotostock", "colourbox",
	// marketplaces and clip art
	"pond5", "photodune", "vectorstock", "freepik", "clipartof",
	"featurepics", "rfclipart",
}

// StockPathPatterns mark stock product pages on otherwise neutral hosts.
var StockPathPatterns = []string{"/stock-photo", "/stock-image", "/editorial-image", "/premium-photo"}

// IsStockURL reports whether rawURL points at a stock agency: its host
// contains one of StockDomains or extra (case-insensitive), or its path
// contains a stock page pattern. Unparsable URLs are not stock.
func IsStockURL(rawURL string, extra []string) bool {
	u, err := url.Parse(rawURL)
	if rawURL == "" || err != nil {
		return false
	}

	host := strings.ToLower(u.Host)
	if host != "" && (hostMatches(host, StockDomains) || hostMatches(host, extra)) {
		return true
	}

	path := strings.ToLower(u.Path)
	for _, p := range StockPathPatterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

func hostMatches(host string, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && strings.Contains(host, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
