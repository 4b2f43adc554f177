package imagepick

import (
	"context"
	"net/url"
	"strconv"
)

const pixabayBaseURL = "https://pixabay.com/api"

// Pixabay rejects per_page outside this range.
const (
	pixabayMinPerPage = 3
	pixabayMaxPerPage = 200
)

// PixabayAdapter searches the Pixabay image API. It needs an API key.
type PixabayAdapter struct {
	*baseAdapter
}

func newPixabay(o AdapterOptions) *PixabayAdapter {
	return &PixabayAdapter{baseAdapter: newBase(ProviderPixabay, pixabayBaseURL, true, o)}
}

type pixabayResponse struct {
	Hits []struct {
		LargeImageURL string `json:"largeImageURL"`
		ImageWidth    int    `json:"imageWidth"`
		ImageHeight   int    `json:"imageHeight"`
		ImageSize     int64  `json:"imageSize"`
		Tags          string `json:"tags"`
		User          string `json:"user"`
	} `json:"hits"`
}

// Search implements SourceAdapter.
func (a *PixabayAdapter) Search(ctx context.Context, query string, count int) []Candidate {
	return a.run(ctx, query, count, a.search)
}

func (a *PixabayAdapter) search(ctx context.Context, query string, count int) ([]Candidate, error) {
	perPage := min(max(count, pixabayMinPerPage), pixabayMaxPerPage)
	params := url.Values{
		"key":        {a.credential},
		"q":          {query},
		"per_page":   {strconv.Itoa(perPage)},
		"image_type": {"photo"},
		"safesearch": {"true"},
	}

	var resp pixabayResponse
	if err := a.getJSON(ctx, a.baseURL+"/", params, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		out = append(out, Candidate{
			URL:         h.LargeImageURL,
			Width:       h.ImageWidth,
			Height:      h.ImageHeight,
			ByteSize:    h.ImageSize,
			Description: h.Tags,
			Author:      h.User,
		})
	}
	return out, nil
}
