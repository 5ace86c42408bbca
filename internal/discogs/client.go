// Package discogs searches the Discogs release database.
package discogs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/justestif/go-record-collection/internal/catalog"
)

const (
	defaultBaseURL = "https://api.discogs.com"
	siteURL        = "https://www.discogs.com"
	userAgent      = "record-collection/1.0 +https://github.com/justestif/go-record-collection"
)

// ErrMissingToken is returned when no personal access token is configured.
var ErrMissingToken = errors.New("missing Discogs token")

// ErrRateLimited is returned when Discogs answers 429 after retries.
var ErrRateLimited = errors.New("discogs rate limit exceeded")

// searchResponse is the JSON response for /database/search.
type searchResponse struct {
	Results []release `json:"results"`
}

type release struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"` // "Artist - Title"
	Year       string   `json:"year"`
	CoverImage string   `json:"cover_image"`
	URI        string   `json:"uri"`
	Genre      []string `json:"genre"`
	Style      []string `json:"style"`
}

// Client is a Discogs API client. Requests are rate limited client side to
// stay under the authenticated limit of 60 per minute.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ catalog.Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.http.SetBaseURL(u)
	}
}

// WithRateLimit overrides the default limiter.
func WithRateLimit(every time.Duration, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(every), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client authenticating with a personal access token.
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	httpClient := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(4*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() == http.StatusTooManyRequests
		}).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetHeader("Authorization", "Discogs token="+token)

	c := &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name implements catalog.Searcher.
func (c *Client) Name() string {
	return "discogs"
}

// Search returns up to limit releases matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]catalog.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        query,
			"type":     "release",
			"per_page": fmt.Sprint(limit),
		}).
		SetResult(&body).
		Get("/database/search")
	if err != nil {
		return nil, fmt.Errorf("searching releases: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.IsError():
		c.logger.DebugContext(ctx, "discogs error response", "status", resp.StatusCode(), "body", resp.String())
		return nil, fmt.Errorf("searching releases: unexpected status %d", resp.StatusCode())
	}

	results := make([]catalog.Result, 0, len(body.Results))
	for _, r := range body.Results {
		results = append(results, convertRelease(r))
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// convertRelease converts a search hit to a catalog result. Discogs titles
// are "Artist - Title"; releases only carry a year.
func convertRelease(r release) catalog.Result {
	artist, title, ok := strings.Cut(r.Title, " - ")
	if !ok {
		artist, title = "", r.Title
	}

	res := catalog.Result{
		Source:   "discogs",
		Title:    strings.TrimSpace(title),
		Artist:   strings.TrimSpace(artist),
		CoverURL: r.CoverImage,
	}

	if len(r.Year) == 4 && r.Year != "0000" {
		res.ReleaseDate = r.Year + "-01-01"
	}

	if r.URI != "" {
		u := r.URI
		if strings.HasPrefix(u, "/") {
			u = siteURL + u
		}
		res.DiscogsURL = &u
	}

	tags := make([]string, 0, len(r.Genre)+len(r.Style))
	tags = append(tags, r.Genre...)
	tags = append(tags, r.Style...)
	if len(tags) > 0 {
		res.Tags = tags
	}
	return res
}
