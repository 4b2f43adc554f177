package imagepick

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const wikimediaBaseURL = "https://commons.wikimedia.org/w/api.php"

// Commons files outside this size range are skipped.
const (
	wikimediaMinBytes = 100 << 10
	wikimediaMaxBytes = 10 << 20
	wikimediaThumb    = 1000
)

var wikimediaExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// WikimediaAdapter searches Wikimedia Commons in two steps: a file search,
// then an imageinfo lookup for the hits. A credential, when set, is sent as
// a bearer token.
type WikimediaAdapter struct {
	*baseAdapter
}

func newWikimedia(o AdapterOptions) *WikimediaAdapter {
	return &WikimediaAdapter{baseAdapter: newBase(ProviderWikimedia, wikimediaBaseURL, false, o)}
}

type wikimediaSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikimediaInfoResponse struct {
	Query struct {
		Normalized []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"normalized"`
		Pages map[string]struct {
			Title     string          `json:"title"`
			ImageInfo []wikimediaInfo `json:"imageinfo"`
		} `json:"pages"`
	} `json:"query"`
}

type wikimediaInfo struct {
	URL         string                       `json:"url"`
	ThumbURL    string                       `json:"thumburl"`
	Width       int                          `json:"width"`
	Height      int                          `json:"height"`
	ThumbWidth  int                          `json:"thumbwidth"`
	ThumbHeight int                          `json:"thumbheight"`
	Size        int64                        `json:"size"`
	Mime        string                       `json:"mime"`
	ExtMetadata map[string]wikimediaMetaItem `json:"extmetadata"`
}

// wikimediaMetaItem values are usually strings but may be numbers.
type wikimediaMetaItem struct {
	Value json.RawMessage `json:"value"`
}

func (m wikimediaMetaItem) text() string {
	if len(m.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Value, &s); err != nil {
		return strings.Trim(string(m.Value), `"`)
	}
	return s
}

// Search implements SourceAdapter.
func (a *WikimediaAdapter) Search(ctx context.Context, query string, count int) []Candidate {
	return a.run(ctx, query, count, a.search)
}

func (a *WikimediaAdapter) header() http.Header {
	if a.credential == "" {
		return nil
	}
	return http.Header{"Authorization": {"Bearer " + a.credential}}
}

func (a *WikimediaAdapter) search(ctx context.Context, query string, count int) ([]Candidate, error) {
	titles, err := a.searchFiles(ctx, query, count)
	if err != nil || len(titles) == 0 {
		return nil, err
	}

	params := url.Values{
		"action":     {"query"},
		"format":     {"json"},
		"titles":     {strings.Join(titles, "|")},
		"prop":       {"imageinfo"},
		"iiprop":     {"url|size|mime|extmetadata"},
		"iiurlwidth": {strconv.Itoa(wikimediaThumb)},
	}
	var resp wikimediaInfoResponse
	if err := a.getJSON(ctx, a.baseURL, params, a.header(), &resp); err != nil {
		return nil, err
	}

	byTitle := make(map[string]wikimediaInfo, len(resp.Query.Pages))
	for _, page := range resp.Query.Pages {
		if len(page.ImageInfo) > 0 {
			byTitle[page.Title] = page.ImageInfo[0]
		}
	}
	normalized := make(map[string]string, len(resp.Query.Normalized))
	for _, n := range resp.Query.Normalized {
		normalized[n.From] = n.To
	}

	// Keep the search order, not the page map order.
	var out []Candidate
	for _, title := range titles {
		if to, ok := normalized[title]; ok {
			title = to
		}
		info, ok := byTitle[title]
		if !ok || info.Size < wikimediaMinBytes || info.Size > wikimediaMaxBytes {
			continue
		}
		out = append(out, wikimediaCandidate(title, info))
	}
	return out, nil
}

func (a *WikimediaAdapter) searchFiles(ctx context.Context, query string, count int) ([]string, error) {
	params := url.Values{
		"action":      {"query"},
		"format":      {"json"},
		"list":        {"search"},
		"srsearch":    {"File:" + query},
		"srnamespace": {"6"},
		"srlimit":     {strconv.Itoa(count * 2)},
	}
	var resp wikimediaSearchResponse
	if err := a.getJSON(ctx, a.baseURL, params, a.header(), &resp); err != nil {
		return nil, err
	}

	var titles []string
	for _, s := range resp.Query.Search {
		if hasImageExtension(s.Title) {
			titles = append(titles, s.Title)
		}
	}
	return titles, nil
}

func wikimediaCandidate(title string, info wikimediaInfo) Candidate {
	c := Candidate{
		URL:      info.URL,
		Width:    info.Width,
		Height:   info.Height,
		ByteSize: info.Size,
	}
	if info.ThumbURL != "" {
		c.URL = info.ThumbURL
		c.Width, c.Height = info.ThumbWidth, info.ThumbHeight
		c.ByteSize = 0 // size describes the original file
	}

	c.Author = stripHTML(info.ExtMetadata["Artist"].text())
	if c.Author == "" {
		c.Author = "Wikimedia Commons"
	}
	c.Description = stripHTML(info.ExtMetadata["ImageDescription"].text())
	if c.Description == "" {
		c.Description = strings.TrimPrefix(title, "File:")
	}
	return c
}

func hasImageExtension(title string) bool {
	lower := strings.ToLower(title)
	for _, ext := range wikimediaExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// stripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func stripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
