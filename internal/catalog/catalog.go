// Package catalog searches external music catalogs for albums that can be
// added to a collection.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	domainerrors "github.com/justestif/go-record-collection/internal/errors"
)

// DefaultLimit is the per-source result count when none is given.
const DefaultLimit = 10

// MaxLimit caps the per-source result count.
const MaxLimit = 50

// Result is one album found in an external catalog. ReleaseDate is
// YYYY-MM-DD; sources that only know the year report January 1st.
type Result struct {
	Source      string   `json:"source"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	ReleaseDate string   `json:"release_date,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	DiscogsURL  *string  `json:"discogs_url"`
	SpotifyURL  *string  `json:"spotify_url"`
	Tags        []string `json:"tags,omitempty"`
}

// Searcher is an external catalog.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// ErrAllSourcesFailed is returned when no source answered.
var ErrAllSourcesFailed = errors.New("all catalog sources failed")

// Service queries every configured source concurrently.
type Service struct {
	sources []Searcher
	limit   int
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLimit sets the default per-source limit.
func WithLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = min(n, MaxLimit)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a search service over sources. Results are merged in
// the order sources are given.
func NewService(sources []Searcher, opts ...Option) *Service {
	s := &Service{
		sources: sources,
		limit:   DefaultLimit,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "catalog")
	return s
}

// Sources returns the names of the configured sources.
func (s *Service) Sources() []string {
	names := make([]string, len(s.sources))
	for i, src := range s.sources {
		names[i] = src.Name()
	}
	return names
}

// Search runs query against every source. A failing source is logged and
// skipped; the call fails only if every source fails.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domainerrors.Validation("query must not be empty")
	}
	if len(s.sources) == 0 {
		return nil, domainerrors.Validation("no catalog sources are configured")
	}
	if limit <= 0 {
		limit = s.limit
	}
	limit = min(limit, MaxLimit)

	type outcome struct {
		results []Result
		err     error
	}
	outcomes := make([]outcome, len(s.sources))

	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := src.Search(ctx, query, limit)
			outcomes[i] = outcome{results: res, err: err}
		}()
	}
	wg.Wait()

	var (
		merged []Result
		errs   []error
	)
	for i, o := range outcomes {
		name := s.sources[i].Name()
		if o.err != nil {
			s.logger.WarnContext(ctx, "catalog source failed", "source", name, "error", o.err)
			errs = append(errs, fmt.Errorf("%s: %w", name, o.err))
			continue
		}
		merged = append(merged, o.results...)
	}

	if len(errs) == len(s.sources) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, domainerrors.Internal("catalog search failed", errors.Join(append([]error{ErrAllSourcesFailed}, errs...)...))
	}

	if merged == nil {
		merged = []Result{}
	}
	return merged, nil
}
