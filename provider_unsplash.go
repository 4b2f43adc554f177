package imagepick

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const unsplashBaseURL = "https://api.unsplash.com"

// UnsplashAdapter searches the Unsplash photo API. It needs an access key.
type UnsplashAdapter struct {
	*baseAdapter
}

func newUnsplash(o AdapterOptions) *UnsplashAdapter {
	return &UnsplashAdapter{baseAdapter: newBase(ProviderUnsplash, unsplashBaseURL, true, o)}
}

type unsplashResponse struct {
	Results []struct {
		Width          int    `json:"width"`
		Height         int    `json:"height"`
		Description    string `json:"description"`
		AltDescription string `json:"alt_description"`
		URLs           struct {
			Regular string `json:"regular"`
		} `json:"urls"`
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	} `json:"results"`
}

// Search implements SourceAdapter.
func (a *UnsplashAdapter) Search(ctx context.Context, query string, count int) []Candidate {
	return a.run(ctx, query, count, a.search)
}

func (a *UnsplashAdapter) search(ctx context.Context, query string, count int) ([]Candidate, error) {
	params := url.Values{
		"query":       {query},
		"per_page":    {strconv.Itoa(count)},
		"orientation": {"squarish"},
	}
	header := http.Header{
		"Authorization":  {"Client-ID " + a.credential},
		"Accept-Version": {"v1"},
	}

	var resp unsplashResponse
	if err := a.getJSON(ctx, a.baseURL+"/search/photos", params, header, &resp); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		desc := strings.TrimSpace(r.Description)
		if desc == "" {
			desc = strings.TrimSpace(r.AltDescription)
		}
		out = append(out, Candidate{
			URL:         r.URLs.Regular,
			Width:       r.Width,
			Height:      r.Height,
			Description: desc,
			Author:      r.User.Name,
		})
	}
	return out, nil
}
