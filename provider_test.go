package imagepick

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

// newAPIServer runs handler behind a JSON content type and counts requests.
func newAPIServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func adapterFor(t *testing.T, id string, srv *httptest.Server, credential string) SourceAdapter {
	t.Helper()
	a, err := NewAdapter(id, AdapterOptions{
		Credential:    credential,
		BaseURL:       srv.URL,
		HTTPClient:    srv.Client(),
		RatePerSecond: 1000,
	})
	if err != nil {
		t.Fatalf("NewAdapter(%q): %v", id, err)
	}
	return a
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	ids := ProviderIDs()
	want := []string{ProviderPexels, ProviderPixabay, ProviderUnsplash, ProviderWikimedia, ProviderWikipedia}
	if len(ids) != len(want) {
		t.Fatalf("ProviderIDs() = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ProviderIDs()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
	if _, err := NewAdapter("flickr", AdapterOptions{}); !IsConfigurationError(err) {
		t.Errorf("unknown provider: err = %v, want ConfigurationError", err)
	}
}

func TestAvailability(t *testing.T) {
	t.Parallel()

	for id, needsKey := range map[string]bool{
		ProviderUnsplash:  true,
		ProviderPexels:    true,
		ProviderPixabay:   true,
		ProviderWikipedia: false,
		ProviderWikimedia: false,
	} {
		a, _ := NewAdapter(id, AdapterOptions{})
		if a.Available() == needsKey {
			t.Errorf("%s without credential: Available() = %v", id, a.Available())
		}
		a, _ = NewAdapter(id, AdapterOptions{Credential: "k"})
		if !a.Available() {
			t.Errorf("%s with credential: unavailable", id)
		}
		if a.ID() != id {
			t.Errorf("ID() = %q, want %q", a.ID(), id)
		}
	}
}

func TestUnsplash_MissingKeySkipsNetwork(t *testing.T) {
	t.Parallel()

	srv, hits := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	a := adapterFor(t, ProviderUnsplash, srv, "")
	if got := a.Search(context.Background(), "eye", 3); len(got) != 0 {
		t.Errorf("Search() = %v, want empty", got)
	}
	if hits.Load() != 0 {
		t.Errorf("hits = %d, want no network call", hits.Load())
	}
}

func TestUnsplash_Search(t *testing.T) {
	t.Parallel()

	var got url.Values
	var auth, version string
	srv, _ := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/photos" {
			http.NotFound(w, r)
			return
		}
		got = r.URL.Query()
		auth, version = r.Header.Get("Authorization"), r.Header.Get("Accept-Version")
		_, _ = w.Write([]byte(`{"results":[
			{"width":1200,"height":1000,"description":null,"alt_description":"a blue eye","urls":{"regular":"https://images.unsplash.com/1"},"user":{"name":"Ann"}},
			{"width":800,"height":800,"description":"iris","urls":{"regular":"https://images.unsplash.com/2"},"user":{"name":"Bo"}},
			{"width":800,"height":800,"description":"extra","urls":{"regular":"https://images.unsplash.com/3"},"user":{"name":"Cy"}}
		]}`))
	})

	cands := adapterFor(t, ProviderUnsplash, srv, "key123").Search(context.Background(), "eye", 2)
	if auth != "Client-ID key123" || version != "v1" {
		t.Errorf("headers = %q, %q", auth, version)
	}
	if got.Get("query") != "eye" || got.Get("per_page") != "2" || got.Get("orientation") != "squarish" {
		t.Errorf("query params = %v", got)
	}
	if len(cands) != 2 {
		t.Fatalf("len = %d, want 2 (truncated to count)", len(cands))
	}
	if cands[0].URL != "https://images.unsplash.com/1" || cands[0].Description != "a blue eye" ||
		cands[0].Author != "Ann" || cands[0].Width != 1200 || cands[0].SourceID != ProviderUnsplash {
		t.Errorf("cands[0] = %+v", cands[0])
	}
	if cands[1].Description != "iris" {
		t.Errorf("cands[1].Description = %q", cands[1].Description)
	}
}

func TestPexels_Search(t *testing.T) {
	t.Parallel()

	var got url.Values
	var auth string
	srv, _ := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		got, auth = r.URL.Query(), r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"photos":[{"width":3000,"height":2000,"alt":"hand","photographer":"Dee","src":{"large":"https://images.pexels.com/1-large.jpg","medium":"m"}}]}`))
	})

	cands := adapterFor(t, ProviderPexels, srv, "pk").Search(context.Background(), "hand", 3)
	if auth != "pk" || got.Get("orientation") != "square" || got.Get("per_page") != "3" {
		t.Errorf("auth %q params %v", auth, got)
	}
	if len(cands) != 1 || cands[0].URL != "https://images.pexels.com/1-large.jpg" || cands[0].Author != "Dee" {
		t.Errorf("cands = %+v", cands)
	}
}

func TestPixabay_Search(t *testing.T) {
	t.Parallel()

	var got url.Values
	srv, _ := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"hits":[{"largeImageURL":"https://pixabay.com/get/1.jpg","imageWidth":1920,"imageHeight":1280,"imageSize":345678,"tags":"ear, anatomy","user":"Eve"}]}`))
	})

	cands := adapterFor(t, ProviderPixabay, srv, "px").Search(context.Background(), "ear", 1)
	if got.Get("key") != "px" || got.Get("q") != "ear" || got.Get("per_page") != "3" ||
		got.Get("image_type") != "photo" || got.Get("safesearch") != "true" {
		t.Errorf("params = %v (per_page must be clamped to 3)", got)
	}
	if len(cands) != 1 || cands[0].ByteSize != 345678 || cands[0].Description != "ear, anatomy" {
		t.Errorf("cands = %+v", cands)
	}
}

func TestWikipedia_Search(t *testing.T) {
	t.Parallel()

	var got url.Values
	srv, _ := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"query":{"pages":{
			"42":{"pageid":42,"title":"Human eye","original":{"source":"https://upload.wikimedia.org/eye.jpg","width":2000,"height":1500}},
			"7":{"pageid":7,"title":"Eye (disambiguation)"}
		}}}`))
	})

	a, _ := NewAdapter(ProviderWikipedia, AdapterOptions{
		BaseURL: srv.URL, HTTPClient: srv.Client(), QueryTemplate: "Human {query}", RatePerSecond: 1000,
	})
	cands := a.Search(context.Background(), "eye", 2)
	if got.Get("titles") != "Human eye" || got.Get("piprop") != "original" || got.Get("redirects") != "1" {
		t.Errorf("params = %v", got)
	}
	if len(cands) != 1 {
		t.Fatalf("cands = %+v, want the page with an image", cands)
	}
	if cands[0].Author != "Wikipedia" || cands[0].Description != "Main image of article Human eye" || cands[0].Height != 1500 {
		t.Errorf("cands[0] = %+v", cands[0])
	}
}

func TestWikimedia_Search(t *testing.T) {
	t.Parallel()

	var searchParams, infoParams url.Values
	var auth string
	srv, _ := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		auth = r.Header.Get("Authorization")
		if q.Get("list") == "search" {
			searchParams = q
			_, _ = w.Write([]byte(`{"query":{"search":[
				{"title":"File:Eye one.jpg"},
				{"title":"File:Eye diagram.svg"},
				{"title":"File:Eye two.PNG"},
				{"title":"File:Tiny eye.jpg"}
			]}}`))
			return
		}
		infoParams = q
		_, _ = w.Write([]byte(`{"query":{"pages":{
			"-1":{"title":"File:Eye two.PNG","imageinfo":[{"url":"https://upload.wikimedia.org/two.png","width":1000,"height":1000,"size":300000,"mime":"image/png",
				"extmetadata":{"Artist":{"value":"Unknown"},"ImageDescription":{"value":12}}}]}},
			"-2":{"title":"File:Eye one.jpg","imageinfo":[{"url":"https://upload.wikimedia.org/one.jpg","thumburl":"https://upload.wikimedia.org/thumb/one.jpg","thumbwidth":1000,"thumbheight":750,
				"width":4000,"height":3000,"size":2000000,"mime":"image/jpeg",
				"extmetadata":{"Artist":{"value":"<a href=\"//commons.wikimedia.org/wiki/User:Jo\">Jo   Doe</a>"},"ImageDescription":{"value":"<p>Close-up of a <b>human</b> eye</p>"}}}]}},
			"-3":{"title":"File:Tiny eye.jpg","imageinfo":[{"url":"https://upload.wikimedia.org/tiny.jpg","size":2000}]}
		}}}`))
	})

	a, _ := NewAdapter(ProviderWikimedia, AdapterOptions{
		Credential: "tok", BaseURL: srv.URL, HTTPClient: srv.Client(), RatePerSecond: 1000,
	})
	cands := a.Search(context.Background(), "eye", 3)

	if searchParams.Get("srsearch") != "File:eye" || searchParams.Get("srnamespace") != "6" || searchParams.Get("srlimit") != "6" {
		t.Errorf("search params = %v", searchParams)
	}
	if infoParams.Get("titles") != "File:Eye one.jpg|File:Eye two.PNG|File:Tiny eye.jpg" || infoParams.Get("iiurlwidth") != "1000" {
		t.Errorf("info params = %v", infoParams)
	}
	if auth != "Bearer tok" {
		t.Errorf("Authorization = %q", auth)
	}
	if len(cands) != 2 {
		t.Fatalf("cands = %+v, want 2 (svg and tiny file dropped)", cands)
	}
	first, second := cands[0], cands[1]
	if first.URL != "https://upload.wikimedia.org/thumb/one.jpg" || first.Width != 1000 || first.Height != 750 {
		t.Errorf("first = %+v, want thumbnail", first)
	}
	if first.Author != "Jo Doe" || first.Description != "Close-up of a human eye" {
		t.Errorf("first text = %q / %q", first.Author, first.Description)
	}
	if second.URL != "https://upload.wikimedia.org/two.png" || second.Description != "12" || second.ByteSize != 300000 {
		t.Errorf("second = %+v", second)
	}
}

func TestWikimedia_FallbackText(t *testing.T) {
	t.Parallel()

	c := wikimediaCandidate("File:Knee.jpg", wikimediaInfo{URL: "https://upload.wikimedia.org/knee.jpg", Size: 200000})
	if c.Author != "Wikimedia Commons" || c.Description != "Knee.jpg" {
		t.Errorf("c = %+v", c)
	}
}

func TestAdapter_FailuresYieldEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, r *http.Request)
	}{
		{name: "server error", handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{name: "unauthorized", handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusUnauthorized) }},
		{name: "malformed json", handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"results":[`)) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv, hits := newAPIServer(t, tc.handler)
			if got := adapterFor(t, ProviderUnsplash, srv, "k").Search(context.Background(), "eye", 3); len(got) != 0 {
				t.Errorf("Search() = %v, want empty", got)
			}
			if hits.Load() != 1 {
				t.Errorf("hits = %d, want 1", hits.Load())
			}
		})
	}
}

func TestAdapter_RateLimitBlocksFurtherCalls(t *testing.T) {
	t.Parallel()

	srv, hits := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(HeaderRetryAfter, "60")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	a := adapterFor(t, ProviderPexels, srv, "k")

	if got := a.Search(context.Background(), "eye", 3); len(got) != 0 {
		t.Errorf("first Search() = %v", got)
	}
	if got := a.Search(context.Background(), "ear", 3); len(got) != 0 {
		t.Errorf("second Search() = %v", got)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1 (blocked until Retry-After)", hits.Load())
	}
}

func TestAdapter_CachesResults(t *testing.T) {
	t.Parallel()

	srv, hits := newAPIServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"photos":[{"width":900,"height":900,"src":{"large":"https://images.pexels.com/a.jpg"}}]}`))
	})
	cache := newMapCache()
	a, _ := NewAdapter(ProviderPexels, AdapterOptions{
		Credential: "k", BaseURL: srv.URL, HTTPClient: srv.Client(), Cache: cache, RatePerSecond: 1000,
	})

	first := a.Search(context.Background(), "eye", 3)
	second := a.Search(context.Background(), "eye", 3)
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
	if len(second) != 1 || second[0] != first[0] {
		t.Errorf("cached = %+v, want %+v", second, first)
	}
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter("test", 1000)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if err := rl.CheckResponse(&http.Response{StatusCode: http.StatusOK, Header: http.Header{}}); err != nil {
		t.Errorf("CheckResponse(200) = %v", err)
	}

	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{HeaderRetryAfter: {"30"}}}
	err := rl.CheckResponse(resp)
	if !IsRateLimited(err) {
		t.Fatalf("CheckResponse(429) = %v", err)
	}
	rle := err.(*RateLimitError)
	if until := time.Until(rle.ResetAt); until < 25*time.Second || until > 31*time.Second {
		t.Errorf("ResetAt in %v, want about 30s", until)
	}
	if err := rl.Wait(context.Background()); !IsRateLimited(err) {
		t.Errorf("Wait while blocked = %v, want RateLimitError", err)
	}
}
