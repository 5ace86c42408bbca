package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(server *httptest.Server) *Client {
	return &Client{
		apiKey:     "test-api-key",
		httpClient: server.Client(),
		baseURL:    server.URL + "/",
		maxTags:    2,
		cache:      make(map[string][]Tag),
	}
}

func tagsResponse(tags ...Tag) topTagsResponse {
	var resp topTagsResponse
	resp.TopTags.Tag = tags
	return resp
}

func TestGetAlbumTags(t *testing.T) {
	tests := []struct {
		name           string
		albumResponse  any
		artistResponse any
		wantTags       []string
		wantErr        error
	}{
		{
			name: "album has tags",
			albumResponse: tagsResponse(
				Tag{Name: "jazz", Count: 100, URL: "https://www.last.fm/tag/jazz"},
				Tag{Name: "modal", Count: 40, URL: "https://www.last.fm/tag/modal"},
			),
			wantTags: []string{"jazz", "modal"},
		},
		{
			name:           "album empty falls back to artist",
			albumResponse:  tagsResponse(),
			artistResponse: tagsResponse(Tag{Name: "bebop"}),
			wantTags:       []string{"bebop"},
		},
		{
			name:           "unknown album falls back to artist",
			albumResponse:  apiError{Error: 6, Message: "Album not found"},
			artistResponse: tagsResponse(Tag{Name: "cool jazz"}),
			wantTags:       []string{"cool jazz"},
		},
		{
			name:           "both unknown returns empty slice",
			albumResponse:  apiError{Error: 6, Message: "Album not found"},
			artistResponse: apiError{Error: 6, Message: "The artist you supplied could not be found"},
			wantTags:       []string{},
		},
		{
			name:          "invalid API key",
			albumResponse: apiError{Error: 10, Message: "Invalid API key"},
			wantErr:       ErrInvalidAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var resp any
				switch method := r.URL.Query().Get("method"); method {
				case "album.getTopTags":
					resp = tt.albumResponse
				case "artist.getTopTags":
					resp = tt.artistResponse
				default:
					t.Errorf("unexpected method: %s", method)
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(resp)
			}))
			defer server.Close()

			tags, err := newTestClient(server).GetAlbumTags(context.Background(), "Miles Davis", "Kind of Blue")

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetAlbumTags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}

			if tags == nil {
				t.Fatal("GetAlbumTags() returned nil slice")
			}
			if len(tags) != len(tt.wantTags) {
				t.Fatalf("GetAlbumTags() got %d tags, want %d", len(tags), len(tt.wantTags))
			}
			for i, tag := range tags {
				if tag.Name != tt.wantTags[i] {
					t.Errorf("tag[%d].Name = %s, want %s", i, tag.Name, tt.wantTags[i])
				}
			}
		})
	}
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")

		switch q.Get("method") {
		case "album.search":
			if q.Get("album") != "blue" || q.Get("limit") != "2" {
				t.Errorf("album.search params = %v", q)
			}
			var resp albumSearchResponse
			resp.Results.AlbumMatches.Album = []Album{
				{
					Name:   "Kind of Blue",
					Artist: "Miles Davis",
					Image: []Image{
						{URL: "https://img/s.png", Size: "small"},
						{URL: "https://img/xl.png", Size: "extralarge"},
						{URL: "https://img/l.png", Size: "large"},
					},
				},
				{Name: "Blue Train", Artist: "John Coltrane"},
				{Name: "Blue", Artist: "Joni Mitchell"},
			}
			json.NewEncoder(w).Encode(resp)
		case "album.getTopTags":
			if q.Get("album") == "Blue Train" {
				json.NewEncoder(w).Encode(apiError{Error: 16, Message: "temporary error"})
				return
			}
			json.NewEncoder(w).Encode(tagsResponse(Tag{Name: "jazz"}, Tag{Name: "modal"}, Tag{Name: "1959"}))
		default:
			t.Errorf("unexpected method: %s", q.Get("method"))
		}
	}))
	defer server.Close()

	results, err := newTestClient(server).Search(context.Background(), "blue", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Search() got %d results, want 2", len(results))
	}

	first := results[0]
	if first.Source != "lastfm" || first.Title != "Kind of Blue" || first.Artist != "Miles Davis" {
		t.Errorf("results[0] = %+v", first)
	}
	if first.CoverURL != "https://img/xl.png" {
		t.Errorf("CoverURL = %s, want the extralarge image", first.CoverURL)
	}
	if len(first.Tags) != 2 || first.Tags[0] != "jazz" {
		t.Errorf("Tags = %v, want [jazz modal]", first.Tags)
	}

	if results[1].Tags != nil {
		t.Errorf("results[1].Tags = %v, want none after a failed lookup", results[1].Tags)
	}
}

func TestGetAlbumTags_Caching(t *testing.T) {
	var requestCount atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tagsResponse(Tag{Name: "rock", Count: 100}))
	}))
	defer server.Close()

	client := newTestClient(server)

	for i := range 2 {
		tags, err := client.GetAlbumTags(context.Background(), "Artist", "Album")
		if err != nil {
			t.Fatalf("call %d: GetAlbumTags() error = %v", i, err)
		}
		if len(tags) != 1 {
			t.Fatalf("call %d: got %d tags, want 1", i, len(tags))
		}
	}

	if count := requestCount.Load(); count != 1 {
		t.Errorf("Expected 1 request, got %d", count)
	}
}

func TestGetAlbumTags_RateLimitRetry(t *testing.T) {
	var requestCount atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		w.Header().Set("Content-Type", "application/json")

		// Fail first 2 requests with rate limit, succeed on 3rd
		if count < 3 {
			json.NewEncoder(w).Encode(apiError{Error: 29, Message: "Rate limit exceeded"})
			return
		}
		json.NewEncoder(w).Encode(tagsResponse(Tag{Name: "rock"}))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tags, err := newTestClient(server).GetAlbumTags(ctx, "Artist", "Album")
	if err != nil {
		t.Fatalf("GetAlbumTags() error = %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "rock" {
		t.Errorf("GetAlbumTags() got unexpected tags: %v", tags)
	}

	if count := requestCount.Load(); count != 3 {
		t.Errorf("Expected 3 requests, got %d", count)
	}
}

func TestGetAlbumTags_RateLimitExhausted(t *testing.T) {
	var requestCount atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(apiError{Error: 29, Message: "Rate limit exceeded"})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := newTestClient(server).GetAlbumTags(ctx, "Artist", "Album")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("GetAlbumTags() error = %v, want ErrRateLimited", err)
	}

	// 1 initial + 3 retries
	if count := requestCount.Load(); count != 4 {
		t.Errorf("Expected 4 requests, got %d", count)
	}
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(&Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if client.apiKey != "test-key" {
		t.Errorf("NewClient() apiKey = %s, want test-key", client.apiKey)
	}
	if client.httpClient == nil || client.httpClient.Timeout != DefaultTimeout {
		t.Error("NewClient() httpClient not configured")
	}
	if client.cache == nil {
		t.Error("NewClient() cache is nil")
	}
	if client.baseURL != baseURL {
		t.Errorf("NewClient() baseURL = %s, want %s", client.baseURL, baseURL)
	}

	if _, err := NewClient(&Config{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("NewClient() without key error = %v, want ErrMissingAPIKey", err)
	}
}
