package eras

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/justestif/go-record-collection/internal/errors"
	"github.com/justestif/go-record-collection/internal/memstore"
	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/storetest"
)

func rec(id int64, title string, year int, tags ...string) models.Record {
	r := models.Record{
		ID:          id,
		Title:       title,
		ReleaseDate: models.NewDate(time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC)),
		Tags:        []models.Tag{},
	}
	for _, t := range tags {
		r.Tags = append(r.Tags, models.NewTag(t))
	}
	return r
}

func ids(recs []models.Record) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestDetectSeparatesDecades(t *testing.T) {
	records := []models.Record{
		rec(1, "Kind of Blue", 1959, "Jazz"),
		rec(4, "Nevermind", 1991, "Rock"),
		rec(2, "Sketches of Spain", 1960, "Jazz"),
		rec(5, "Ten", 1992, "Rock"),
		rec(3, "Africa/Brass", 1961, "Jazz"),
		rec(6, "Loveless", 1990, "Rock", "Shoegaze"),
	}

	res := Detect(records, Config{NumClusters: 2, MinClusterSize: 2})

	assert.Equal(t, 6, res.Total)
	assert.Empty(t, res.Outliers)
	require.Len(t, res.Eras, 2)

	assert.Equal(t, "Jazz: 1959–1961", res.Eras[0].Name)
	assert.Equal(t, []int64{1, 2, 3}, ids(res.Eras[0].Records))

	assert.Equal(t, "Rock: 1990–1992", res.Eras[1].Name)
	assert.Equal(t, []int64{6, 4, 5}, ids(res.Eras[1].Records))
	assert.Contains(t, res.Eras[1].TopTags, "Shoegaze")
}

func TestDetectSmallClusterBecomesOutlier(t *testing.T) {
	records := []models.Record{
		rec(1, "A", 1959, "Jazz"),
		rec(2, "B", 1960, "Jazz"),
		rec(3, "C", 1961, "Jazz"),
		rec(4, "Lonely", 2020, "Hyperpop"),
	}

	res := Detect(records, Config{NumClusters: 2, MinClusterSize: 2})

	require.Len(t, res.Eras, 1)
	assert.Equal(t, []int64{1, 2, 3}, ids(res.Eras[0].Records))
	assert.Equal(t, []int64{4}, ids(res.Outliers))
}

func TestDetectKeepsEveryRecord(t *testing.T) {
	undated := models.Record{ID: 99, Title: "Unknown"}
	records := []models.Record{
		rec(1, "A", 1970, "Funk"),
		rec(2, "B", 1971, "Funk"),
		rec(3, "C", 1985),
		undated,
	}

	res := Detect(records, DefaultConfig())

	seen := ids(res.Outliers)
	for _, era := range res.Eras {
		seen = append(seen, ids(era.Records)...)
	}
	assert.ElementsMatch(t, []int64{1, 2, 3, 99}, seen)
	assert.Contains(t, ids(res.Outliers), int64(99))
}

func TestDetectFewerRecordsThanClusters(t *testing.T) {
	res := Detect([]models.Record{rec(1, "Solo", 1977)}, Config{NumClusters: 3, MinClusterSize: 1})

	require.Len(t, res.Eras, 1)
	assert.Equal(t, "Mixed: 1977", res.Eras[0].Name)
	assert.Empty(t, res.Outliers)
}

func TestDetectEmpty(t *testing.T) {
	res := Detect(nil, DefaultConfig())

	assert.NotNil(t, res.Eras)
	assert.Empty(t, res.Eras)
	assert.Zero(t, res.Total)
}

func TestEraName(t *testing.T) {
	tests := []struct {
		tags       []string
		start, end int
		want       string
	}{
		{[]string{"Jazz", "Bebop"}, 1959, 1965, "Jazz: 1959–1965"},
		{[]string{"Soul"}, 1971, 1971, "Soul: 1971"},
		{nil, 2001, 2003, "Mixed: 2001–2003"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, eraName(tt.tags, tt.start, tt.end))
	}
}

func TestServiceForUser(t *testing.T) {
	stores := memstore.New(nil).Stores()
	ctx := context.Background()
	user := storetest.MustUser(t, stores, "eras")

	for _, year := range []string{"1959-08-17", "1960-01-01"} {
		in := storetest.KindOfBlue()
		in.ReleaseDate = year
		_, err := stores.Records.Create(ctx, user, in)
		require.NoError(t, err)
	}

	svc := NewService(stores.Records, DefaultConfig())

	res, err := svc.ForUser(ctx, user, models.RecordFilter{}, 1)
	require.NoError(t, err)
	require.Len(t, res.Eras, 1)
	assert.Equal(t, "Jazz: 1959–1960", res.Eras[0].Name)

	_, err = svc.ForUser(ctx, user, models.RecordFilter{}, MaxClusters+1)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}
