package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordInputToRecord(t *testing.T) {
	in := RecordInput{
		Title:       "Kind of Blue",
		Artist:      "Miles Davis",
		ReleaseDate: "1959-08-17",
		CoverURL:    "https://x/y.jpg",
		Wanted:      Bool(true),
		Tags:        []string{"Jazz"},
	}

	rec, err := in.ToRecord(7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), rec.UserID)
	assert.Equal(t, "1959-08-17", rec.ReleaseDate.String())
	assert.False(t, rec.Owned, "owned defaults to false")
	assert.True(t, rec.Wanted)
	assert.Nil(t, rec.DiscogsURL)
	assert.Empty(t, rec.Tags, "tags are resolved by the store")
}

func TestRecordInputToRecordBadDate(t *testing.T) {
	_, err := RecordInput{ReleaseDate: "17/08/1959"}.ToRecord(1)
	assert.Error(t, err)
}

func TestRecordJSON(t *testing.T) {
	rec := Record{
		ID:          3,
		Title:       "Blue Train",
		Artist:      "John Coltrane",
		ReleaseDate: NewDate(time.Date(1958, 1, 1, 15, 4, 5, 0, time.UTC)),
		CoverURL:    "https://img.example/blue-train.jpg",
		UserID:      9,
		Tags:        []Tag{{ID: 12, Name: "Jazz", Slug: "jazz"}},
	}

	b, err := json.Marshal(rec)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))

	assert.Equal(t, "1958-01-01", got["release_date"])
	assert.Nil(t, got["discogs_url"])
	assert.Equal(t, []any{map[string]any{"name": "Jazz", "slug": "jazz"}}, got["tags"])
}

func TestDateUnmarshalJSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2001-09-11"`), &d))
	assert.Equal(t, 2001, d.Year())
	assert.Equal(t, time.September, d.Month())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &d))
}

func TestNewCollectionToken(t *testing.T) {
	now := time.Now()
	a := NewCollectionToken(4, now)
	b := NewCollectionToken(4, now)

	assert.Equal(t, int64(4), a.UserID)
	assert.Len(t, a.Token, 36)
	assert.NotEqual(t, a.Token, b.Token)

	b2, err := json.Marshal(a)
	require.NoError(t, err)
	assert.NotContains(t, string(b2), `"id"`)
}
