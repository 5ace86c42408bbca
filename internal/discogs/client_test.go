package discogs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{
  "pagination": {"page": 1, "pages": 1, "per_page": 5, "items": 2},
  "results": [
    {
      "id": 1,
      "title": "Miles Davis - Kind Of Blue",
      "year": "1959",
      "cover_image": "https://i.discogs.com/kob.jpg",
      "uri": "/release/1-Miles-Davis-Kind-Of-Blue",
      "genre": ["Jazz"],
      "style": ["Modal", "Cool Jazz"]
    },
    {
      "id": 2,
      "title": "Untitled Bootleg",
      "year": "",
      "uri": "/release/2-Untitled"
    }
  ]
}`

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient("secret-token", WithBaseURL(server.URL), WithRateLimit(time.Millisecond, 10))
	require.NoError(t, err)
	return c
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/database/search", r.URL.Path)
		assert.Equal(t, "Discogs token=secret-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Equal(t, "kind of blue", r.URL.Query().Get("q"))
		assert.Equal(t, "release", r.URL.Query().Get("type"))
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	}))
	defer server.Close()

	results, err := newTestClient(t, server).Search(context.Background(), "kind of blue", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	kob := results[0]
	assert.Equal(t, "discogs", kob.Source)
	assert.Equal(t, "Miles Davis", kob.Artist)
	assert.Equal(t, "Kind Of Blue", kob.Title)
	assert.Equal(t, "1959-01-01", kob.ReleaseDate)
	assert.Equal(t, "https://i.discogs.com/kob.jpg", kob.CoverURL)
	require.NotNil(t, kob.DiscogsURL)
	assert.Equal(t, "https://www.discogs.com/release/1-Miles-Davis-Kind-Of-Blue", *kob.DiscogsURL)
	assert.Equal(t, []string{"Jazz", "Modal", "Cool Jazz"}, kob.Tags)
	assert.Nil(t, kob.SpotifyURL)

	bootleg := results[1]
	assert.Empty(t, bootleg.Artist)
	assert.Equal(t, "Untitled Bootleg", bootleg.Title)
	assert.Empty(t, bootleg.ReleaseDate)
	assert.Nil(t, bootleg.Tags)
}

func TestSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "You must authenticate to access this resource."}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Search(context.Background(), "x", 5)
	assert.ErrorContains(t, err, "401")
}

func TestSearchRetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	results, err := newTestClient(t, server).Search(context.Background(), "x", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSearchCancelledWhileWaiting(t *testing.T) {
	c, err := NewClient("token", WithRateLimit(time.Hour, 1))
	require.NoError(t, err)
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Search(ctx, "x", 5)
	assert.Error(t, err)
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrMissingToken)
}
