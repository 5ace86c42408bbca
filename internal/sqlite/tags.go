package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/store"
	"github.com/justestif/go-record-collection/internal/tags"
)

// TagRepository handles tag database operations.
type TagRepository struct {
	db       *sql.DB
	resolver *tags.Resolver
}

var _ store.TagStore = (*TagRepository)(nil)

// FindOrCreate resolves a single tag name outside of any record write.
func (r *TagRepository) FindOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	return r.resolver.FindOrCreate(ctx, tagQuerier{r.db}, name)
}

// List returns every tag ordered by slug.
func (r *TagRepository) List(ctx context.Context) ([]models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug FROM tags ORDER BY slug`)
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

// tagQuerier adapts a handle or transaction to tags.Querier.
type tagQuerier struct {
	q querier
}

func (t tagQuerier) FindTagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var tag models.Tag
	err := t.q.QueryRowContext(ctx, `SELECT id, name, slug FROM tags WHERE slug = ?`, slug).
		Scan(&tag.ID, &tag.Name, &tag.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tag: %w", err)
	}
	return &tag, nil
}

func (t tagQuerier) InsertTag(ctx context.Context, tag models.Tag) (*models.Tag, error) {
	query := `
		INSERT INTO tags (name, slug)
		VALUES (?, ?)
		ON CONFLICT (slug) DO NOTHING
		RETURNING id
	`
	err := t.q.QueryRowContext(ctx, query, tag.Name, tag.Slug).Scan(&tag.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("inserting tag: %w", err)
	}
	return &tag, nil
}

// setRecordTags replaces the record's links with tagIDs, keeping their order.
func setRecordTags(ctx context.Context, q querier, recordID int64, tagIDs []int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM records_tags WHERE record_id = ?`, recordID); err != nil {
		return fmt.Errorf("clearing record tags: %w", err)
	}
	if len(tagIDs) == 0 {
		return nil
	}

	values := make([]string, len(tagIDs))
	args := make([]any, 0, len(tagIDs)*3)
	for i, id := range tagIDs {
		values[i] = "(?, ?, ?)"
		args = append(args, recordID, id, i+1)
	}

	query := `INSERT INTO records_tags (record_id, tag_id, position) VALUES ` + strings.Join(values, ", ")
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("linking record tags: %w", err)
	}
	return nil
}

// tagsForRecords fetches the tags of every record in ids with one query.
func tagsForRecords(ctx context.Context, q querier, ids []any) (map[int64][]models.Tag, error) {
	where, args := new(store.Where).In("rt.record_id", ids...).Build(store.Question, 0)
	query := `
		SELECT rt.record_id, t.id, t.name, t.slug
		FROM records_tags rt
		JOIN tags t ON t.id = rt.tag_id
		WHERE ` + where + `
		ORDER BY rt.record_id, rt.position
	`
	rows, err := q.QueryContext(ctx, query, args...)
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
