// Package tags resolves free-text tag names to canonical tag rows.
package tags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/store"
)

// DefaultMaxAttempts bounds how often FindOrCreate re-reads after losing an
// insert race.
const DefaultMaxAttempts = 3

// ErrEmptySlug is returned for names with no letters or digits.
var ErrEmptySlug = errors.New("tag name has no letters or digits")

// Querier is the tag access a resolver needs. Backends implement it on top
// of whatever transaction the caller is running in.
type Querier interface {
	// FindTagBySlug returns store.ErrNotFound when no tag has slug.
	FindTagBySlug(ctx context.Context, slug string) (*models.Tag, error)

	// InsertTag returns store.ErrConflict when the slug already exists.
	InsertTag(ctx context.Context, tag models.Tag) (*models.Tag, error)
}

// Resolver implements find-or-create by slug. It holds no state beyond its
// options and is safe for concurrent use.
type Resolver struct {
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxAttempts sets how many find/insert rounds run before a conflict is
// returned to the caller.
func WithMaxAttempts(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithLogger sets the logger used to report insert races.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a tag resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "tags")
	return r
}

// FindOrCreate returns the tag whose slug matches name, creating it on first
// use. An existing tag is returned unchanged, so the first writer's display
// name wins. A lost insert race is resolved by re-reading the winner's row.
func (r *Resolver) FindOrCreate(ctx context.Context, q Querier, name string) (*models.Tag, error) {
	tag := models.NewTag(name)
	if tag.Slug == "" {
		return nil, fmt.Errorf("resolving tag %q: %w", name, ErrEmptySlug)
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		found, err := q.FindTagBySlug(ctx, tag.Slug)
		if err == nil {
			return found, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("finding tag %q: %w", tag.Slug, err)
		}

		created, err := q.InsertTag(ctx, tag)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("inserting tag %q: %w", tag.Slug, err)
		}

		r.logger.Debug("tag insert lost race, re-reading",
			"slug", tag.Slug, "attempt", attempt)
	}

	return nil, fmt.Errorf("resolving tag %q after %d attempts: %w", tag.Slug, r.maxAttempts, store.ErrConflict)
}

// ResolveAll resolves names, skipping names without a usable slug and names
// whose slug was already seen. The result follows first-seen order, but tags
// are looked up and created in slug order: concurrent transactions that
// create overlapping tags then take their row locks in the same order.
func (r *Resolver) ResolveAll(ctx context.Context, q Querier, names []string) ([]models.Tag, error) {
	type pending struct {
		slug string
		name string
	}

	var order []pending
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		slug := models.Slugify(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		order = append(order, pending{slug: slug, name: name})
	}

	sorted := slices.Clone(order)
	slices.SortFunc(sorted, func(a, b pending) int {
		return strings.Compare(a.slug, b.slug)
	})

	bySlug := make(map[string]models.Tag, len(sorted))
	for _, p := range sorted {
		tag, err := r.FindOrCreate(ctx, q, p.name)
		if err != nil {
			return nil, err
		}
		bySlug[p.slug] = *tag
	}

	resolved := make([]models.Tag, 0, len(order))
	for _, p := range order {
		resolved = append(resolved, bySlug[p.slug])
	}
	return resolved, nil
}

// IDs returns the ids of tags in order.
func IDs(tags []models.Tag) []int64 {
	ids := make([]int64, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}
