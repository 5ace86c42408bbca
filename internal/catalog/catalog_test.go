package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/justestif/go-record-collection/internal/errors"
)

type fakeSource struct {
	name    string
	results []Result
	err     error
	delay   time.Duration
	calls   atomic.Int32
	limit   atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	f.calls.Add(1)
	f.limit.Store(int32(limit))
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.results, f.err
}

func TestSearchMergesInSourceOrder(t *testing.T) {
	slow := &fakeSource{name: "slow", results: []Result{{Source: "slow", Title: "A"}}, delay: 20 * time.Millisecond}
	fast := &fakeSource{name: "fast", results: []Result{{Source: "fast", Title: "B"}, {Source: "fast", Title: "C"}}}

	svc := NewService([]Searcher{slow, fast})
	got, err := svc.Search(context.Background(), "kind of blue", 0)
	require.NoError(t, err)

	titles := []string{}
	for _, r := range got {
		titles = append(titles, r.Title)
	}
	assert.Equal(t, []string{"A", "B", "C"}, titles)
	assert.EqualValues(t, DefaultLimit, slow.limit.Load())
}

func TestSearchSkipsFailedSource(t *testing.T) {
	broken := &fakeSource{name: "broken", err: errors.New("503")}
	ok := &fakeSource{name: "ok", results: []Result{{Title: "Blue Train"}}}

	got, err := NewService([]Searcher{broken, ok}).Search(context.Background(), "coltrane", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Blue Train", got[0].Title)
	assert.EqualValues(t, 1, broken.calls.Load())
}

func TestSearchAllFail(t *testing.T) {
	a := &fakeSource{name: "a", err: errors.New("timeout")}
	b := &fakeSource{name: "b", err: errors.New("rate limited")}

	_, err := NewService([]Searcher{a, b}).Search(context.Background(), "x", 5)
	assert.ErrorIs(t, err, domainerrors.ErrInternal)
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
}

func TestSearchEmptyQuery(t *testing.T) {
	src := &fakeSource{name: "a"}

	_, err := NewService([]Searcher{src}).Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Zero(t, src.calls.Load())
}

func TestSearchNoResultsIsEmptySlice(t *testing.T) {
	got, err := NewService([]Searcher{&fakeSource{name: "a"}}).Search(context.Background(), "nothing", 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearchLimitCapped(t *testing.T) {
	src := &fakeSource{name: "a"}

	_, err := NewService([]Searcher{src}).Search(context.Background(), "q", 500)
	require.NoError(t, err)
	assert.EqualValues(t, MaxLimit, src.limit.Load())
}

func TestSources(t *testing.T) {
	svc := NewService([]Searcher{&fakeSource{name: "spotify"}, &fakeSource{name: "discogs"}})
	assert.Equal(t, []string{"spotify", "discogs"}, svc.Sources())

	assert.Empty(t, NewService(nil).Sources())
}
