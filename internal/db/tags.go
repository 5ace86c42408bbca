package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/store"
	"github.com/justestif/go-record-collection/internal/tags"
)

// TagRepository handles tag database operations.
type TagRepository struct {
	pool     *pgxpool.Pool
	resolver *tags.Resolver
}

var _ store.TagStore = (*TagRepository)(nil)

// FindOrCreate resolves a single tag name outside of any record write.
func (r *TagRepository) FindOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	return r.resolver.FindOrCreate(ctx, tagQuerier{r.pool}, name)
}

// List returns every tag ordered by slug.
func (r *TagRepository) List(ctx context.Context) ([]models.Tag, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, slug FROM tags ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	result := []models.Tag{}
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Slug); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		result = append(result, tag)
	}
	return result, rows.Err()
}

// tagQuerier adapts a pool or transaction to tags.Querier.
type tagQuerier struct {
	q querier
}

func (t tagQuerier) FindTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var tag models.Tag
	err := t.q.QueryRow(ctx, `SELECT id, name, slug FROM tags WHERE slug = $1`, slug).
		Scan(&tag.ID, &tag.Name, &tag.Slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tag: %w", err)
	}
	return &tag, nil
}

// InsertTag leaves an existing row untouched; RETURNING then yields no row,
// which is reported as a conflict.
func (t tagQuerier) InsertTag(ctx context.Context, tag models.Tag) (*models.Tag, error) {
	query := `
		INSERT INTO tags (name, slug)
		VALUES ($1, $2)
		ON CONFLICT (slug) DO NOTHING
		RETURNING id
	`
	err := t.q.QueryRow(ctx, query, tag.Name, tag.Slug).Scan(&tag.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("inserting tag: %w", err)
	}
	return &tag, nil
}

// setRecordTags replaces the record's links with tagIDs, keeping their order.
func setRecordTags(ctx context.Context, q querier, recordID int64, tagIDs []int64) error {
	if _, err := q.Exec(ctx, `DELETE FROM records_tags WHERE record_id = $1`, recordID); err != nil {
		return fmt.Errorf("clearing record tags: %w", err)
	}
	if len(tagIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO records_tags (record_id, tag_id, position)
		SELECT $1, t.tag_id, t.ord
		FROM unnest($2::bigint[]) WITH ORDINALITY AS t(tag_id, ord)
	`
	if _, err := q.Exec(ctx, query, recordID, tagIDs); err != nil {
		return fmt.Errorf("linking record tags: %w", err)
	}
	return nil
}

// tagsForRecords fetches the tags of every record in ids with one query.
func tagsForRecords(ctx context.Context, q querier, ids []int64) (map[int64][]models.Tag, error) {
	if len(ids) == 0 {
		return make(map[int64][]models.Tag), nil
	}

	query := `
		SELECT rt.record_id, t.id, t.name, t.slug
		FROM records_tags rt
		JOIN tags t ON t.id = rt.tag_id
		WHERE rt.record_id = ANY($1)
		ORDER BY rt.record_id, rt.position
	`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("querying record tags: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]models.Tag)
	for rows.Next() {
		var (
			recordID int64
			tag      models.Tag
		)
		if err := rows.Scan(&recordID, &tag.ID, &tag.Name, &tag.Slug); err != nil {
			return nil, fmt.Errorf("scanning record tag: %w", err)
		}
		result[recordID] = append(result[recordID], tag)
	}
	return result, rows.Err()
}
