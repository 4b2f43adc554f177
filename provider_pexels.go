package imagepick

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const pexelsBaseURL = "https://api.pexels.com/v1"

// PexelsAdapter searches the Pexels photo API. It needs an API key.
type PexelsAdapter struct {
	*baseAdapter
}

func newPexels(o AdapterOptions) *PexelsAdapter {
	return &PexelsAdapter{baseAdapter: newBase(ProviderPexels, pexelsBaseURL, true, o)}
}

type pexelsResponse struct {
	Photos []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		Alt          string `json:"alt"`
		Photographer string `json:"photographer"`
		Src          struct {
			Large string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// Search implements SourceAdapter.
func (a *PexelsAdapter) Search(ctx context.Context, query string, count int) []Candidate {
	return a.run(ctx, query, count, a.search)
}

func (a *PexelsAdapter) search(ctx context.Context, query string, count int) ([]Candidate, error) {
	params := url.Values{
		"query":       {query},
		"per_page":    {strconv.Itoa(count)},
		"orientation": {"square"},
	}
	header := http.Header{"Authorization": {a.credential}}

	var resp pexelsResponse
	if err := a.getJSON(ctx, a.baseURL+"/search", params, header, &resp); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(resp.Photos))
	for _, p := range resp.Photos {
		// Width and height describe the original, not the "large" rendition.
		out = append(out, Candidate{
			URL:         p.Src.Large,
			Width:       p.Width,
			Height:      p.Height,
			Description: p.Alt,
			Author:      p.Photographer,
		})
	}
	return out, nil
}
