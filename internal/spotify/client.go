// Package spotify searches the Spotify Web API catalog for albums.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/justestif/go-record-collection/internal/catalog"
)

// ErrMissingCredentials is returned when the client id or secret is empty.
var ErrMissingCredentials = errors.New("missing Spotify client id or secret")

// Client wraps the Spotify API client for catalog search.
type Client struct {
	api *spotify.Client
}

var _ catalog.Searcher = (*Client)(nil)

// New wraps an already authenticated API client.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// NewWithCredentials authenticates with the client credentials flow, which
// needs no user and is enough for catalog reads.
func NewWithCredentials(ctx context.Context, clientID, clientSecret string, opts ...spotify.ClientOption) (*Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}

	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	opts = append([]spotify.ClientOption{spotify.WithRetry(true)}, opts...)
	return New(spotify.New(cfg.Client(ctx), opts...)), nil
}

// Name implements catalog.Searcher.
func (c *Client) Name() string {
	return "spotify"
}

// Search returns up to limit albums matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]catalog.Result, error) {
	res, err := c.api.Search(ctx, query, spotify.SearchTypeAlbum, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("searching albums: %w", err)
	}
	if res.Albums == nil {
		return []catalog.Result{}, nil
	}

	results := make([]catalog.Result, 0, len(res.Albums.Albums))
	for _, album := range res.Albums.Albums {
		results = append(results, convertAlbum(album))
	}
	return results, nil
}

// convertAlbum converts a Spotify SimpleAlbum to a catalog result.
func convertAlbum(album spotify.SimpleAlbum) catalog.Result {
	artists := make([]string, len(album.Artists))
	for i, a := range album.Artists {
		artists[i] = a.Name
	}

	r := catalog.Result{
		Source:      "spotify",
		Title:       album.Name,
		Artist:      strings.Join(artists, ", "),
		ReleaseDate: releaseDate(album.ReleaseDate, album.ReleaseDatePrecision),
	}

	// Images are ordered widest first.
	if len(album.Images) > 0 {
		r.CoverURL = album.Images[0].URL
	}
	if u, ok := album.ExternalURLs["spotify"]; ok && u != "" {
		r.SpotifyURL = &u
	}
	return r
}

// releaseDate pads a year or year-month release date out to a full day.
func releaseDate(date, precision string) string {
	switch precision {
	case "year":
		if len(date) == 4 {
			return date + "-01-01"
		}
	case "month":
		if len(date) == 7 {
			return date + "-01"
		}
	case "day":
		if len(date) == 10 {
			return date
		}
	}

	switch len(date) {
	case 4:
		return date + "-01-01"
	case 7:
		return date + "-01"
	case 10:
		return date
	}
	return ""
}
