package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/justestif/go-record-collection/internal/catalog"
)

const (
	baseURL   = "https://ws.audioscrobbler.com/2.0/"
	userAgent = "record-collection/1.0"

	// tagWorkers bounds concurrent tag lookups during a search.
	tagWorkers = 4
)

// Last.fm API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrRateLimited is returned when the API rate limit is exceeded after retries.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrNotFound is returned when Last.fm does not know the album or artist.
	ErrNotFound = errors.New("not found")
)

// Client is a Last.fm API client with caching and retry on rate limits.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	maxTags    int

	// In-memory cache: key = "album:{artist}:{album}" or "artist:{artist}"
	cache   map[string][]Tag
	cacheMu sync.RWMutex
}

var _ catalog.Searcher = (*Client)(nil)

// NewClient creates a new Last.fm API client from the provided configuration.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: baseURL,
		maxTags: cfg.MaxTags,
		cache:   make(map[string][]Tag),
	}, nil
}

// Name implements catalog.Searcher.
func (c *Client) Name() string {
	return "lastfm"
}

// Search finds up to limit albums matching query and attaches each album's
// top tags. A failed tag lookup leaves that result untagged.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]catalog.Result, error) {
	params := url.Values{
		"method":  {"album.search"},
		"album":   {query},
		"limit":   {fmt.Sprint(limit)},
		"format":  {"json"},
		"api_key": {c.apiKey},
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("searching albums: %w", err)
	}

	var resp albumSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing album search response: %w", err)
	}

	albums := resp.Results.AlbumMatches.Album
	if len(albums) > limit {
		albums = albums[:limit]
	}

	results := make([]catalog.Result, len(albums))
	for i, a := range albums {
		results[i] = catalog.Result{
			Source:   "lastfm",
			Title:    a.Name,
			Artist:   a.Artist,
			CoverURL: coverURL(a.Image),
		}
	}

	c.attachTags(ctx, albums, results)
	return results, nil
}

// attachTags looks up tags for each album with a small worker pool,
// writing into results by index.
func (c *Client) attachTags(ctx context.Context, albums []Album, results []catalog.Result) {
	workCh := make(chan int, len(albums))
	for i := range albums {
		workCh <- i
	}
	close(workCh)

	var wg sync.WaitGroup
	for range min(tagWorkers, len(albums)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				tags, err := c.GetAlbumTags(ctx, albums[i].Artist, albums[i].Name)
				if err != nil {
					continue
				}
				results[i].Tags = tagNames(tags, c.maxTags)
			}
		}()
	}
	wg.Wait()
}

// GetAlbumTags fetches tags for an album, falling back to artist tags if
// the album has none. Results are cached in memory. Returns an empty slice
// (not nil) if no tags are found.
func (c *Client) GetAlbumTags(ctx context.Context, artist, album string) ([]Tag, error) {
	tags, err := c.topTags(ctx, "album:"+artist+":"+album, url.Values{
		"method": {"album.getTopTags"},
		"artist": {artist},
		"album":  {album},
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("fetching album tags: %w", err)
	}

	if len(tags) > 0 {
		return tags, nil
	}

	tags, err = c.topTags(ctx, "artist:"+artist, url.Values{
		"method": {"artist.getTopTags"},
		"artist": {artist},
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Tag{}, nil
		}
		return nil, fmt.Errorf("fetching artist tags: %w", err)
	}
	return tags, nil
}

// topTags runs a getTopTags method with caching.
func (c *Client) topTags(ctx context.Context, cacheKey string, params url.Values) ([]Tag, error) {
	c.cacheMu.RLock()
	if cached, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	params.Set("autocorrect", "1")
	params.Set("format", "json")
	params.Set("api_key", c.apiKey)

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp topTagsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing tags response: %w", err)
	}

	tags := resp.TopTags.Tag
	if tags == nil {
		tags = []Tag{}
	}

	c.cacheMu.Lock()
	c.cache[cacheKey] = tags
	c.cacheMu.Unlock()

	return tags, nil
}

// doRequest performs an HTTP GET request with retry on rate limit.
// Retries up to 3 times with exponential backoff (1s, 2s, 4s).
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	delays := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	var lastErr error

	for attempt := 0; attempt <= len(delays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}

		if errors.Is(err, ErrRateLimited) {
			lastErr = err
			continue
		}

		return nil, err
	}

	return nil, lastErr
}

// doSingleRequest performs a single HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	// Last.fm reports most errors in a JSON body, some with a non-200 status.
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, ErrRateLimited
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeInvalidParams:
			return nil, fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		default:
			return nil, fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return body, nil
}

// coverURL picks the largest non-empty image.
func coverURL(images []Image) string {
	best, rank := "", -1
	order := map[string]int{"small": 0, "medium": 1, "large": 2, "extralarge": 3, "mega": 4}
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		if r, ok := order[img.Size]; ok && r > rank {
			best, rank = img.URL, r
		} else if !ok && best == "" {
			best = img.URL
		}
	}
	return best
}

func tagNames(tags []Tag, n int) []string {
	names := make([]string, 0, min(n, len(tags)))
	for _, t := range tags {
		if len(names) == n {
			break
		}
		names = append(names, t.Name)
	}
	return names
}
