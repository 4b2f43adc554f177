package imagepick

import (
	"context"
	"net/url"
	"sort"
	"strconv"
)

const wikipediaBaseURL = "https://en.wikipedia.org/w/api.php"

// WikipediaAdapter returns the lead image of the article titled by the query.
// No credential is needed.
type WikipediaAdapter struct {
	*baseAdapter
}

func newWikipedia(o AdapterOptions) *WikipediaAdapter {
	return &WikipediaAdapter{baseAdapter: newBase(ProviderWikipedia, wikipediaBaseURL, false, o)}
}

type wikipediaResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID   int    `json:"pageid"`
			Title    string `json:"title"`
			Original *struct {
				Source string `json:"source"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"original"`
		} `json:"pages"`
	} `json:"query"`
}

// Search implements SourceAdapter.
func (a *WikipediaAdapter) Search(ctx context.Context, query string, count int) []Candidate {
	return a.run(ctx, query, count, a.search)
}

func (a *WikipediaAdapter) search(ctx context.Context, query string, _ int) ([]Candidate, error) {
	params := url.Values{
		"action":    {"query"},
		"format":    {"json"},
		"titles":    {query},
		"prop":      {"pageimages"},
		"piprop":    {"original"},
		"redirects": {"1"},
	}

	var resp wikipediaResponse
	if err := a.getJSON(ctx, a.baseURL, params, nil, &resp); err != nil {
		return nil, err
	}

	// Page ids are map keys; sort them so results do not depend on map order.
	keys := make([]string, 0, len(resp.Query.Pages))
	for k := range resp.Query.Pages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		x, errX := strconv.Atoi(keys[i])
		y, errY := strconv.Atoi(keys[j])
		if errX != nil || errY != nil {
			return keys[i] < keys[j]
		}
		return x < y
	})

	var out []Candidate
	for _, k := range keys {
		page := resp.Query.Pages[k]
		if page.Original == nil || page.Original.Source == "" {
			continue
		}
		out = append(out, Candidate{
			URL:         page.Original.Source,
			Width:       page.Original.Width,
			Height:      page.Original.Height,
			Description: "Main image of article " + page.Title,
			Author:      "Wikipedia",
		})
	}
	return out, nil
}
