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

const recordColumns = `id, title, artist, release_date, cover_url, discogs_url, spotify_url, owned, wanted, user_id`

// RecordRepository handles record database operations.
type RecordRepository struct {
	db       *sql.DB
	resolver *tags.Resolver
}

var _ store.RecordStore = (*RecordRepository)(nil)

// Create inserts a record and links its tags in one transaction.
func (r *RecordRepository) Create(ctx context.Context, userID int64, input models.RecordInput) (*models.Record, error) {
	rec, err := input.ToRecord(userID)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO records (title, artist, release_date, cover_url, discogs_url, spotify_url, owned, wanted, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query, recordArgs(rec)[1:]...).Scan(&rec.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting record: %w", err)
	}

	if rec.Tags, err = r.linkTags(ctx, tx, rec.ID, input.Tags); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return &rec, nil
}

// CreateMany inserts records with a single multi-row statement. Ids are
// assigned before the insert so each row keeps its input position; the
// single connection makes MAX(id) safe inside the transaction.
func (r *RecordRepository) CreateMany(ctx context.Context, userID int64, inputs []models.RecordInput) ([]models.Record, error) {
	if len(inputs) == 0 {
		return []models.Record{}, nil
	}

	recs := make([]models.Record, len(inputs))
	for i, in := range inputs {
		rec, err := in.ToRecord(userID)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		recs[i] = rec
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var maxID int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM records`).Scan(&maxID); err != nil {
		return nil, fmt.Errorf("allocating record ids: %w", err)
	}

	row := "(" + placeholders(10) + ")"
	values := make([]string, len(recs))
	args := make([]any, 0, len(recs)*10)
	for i := range recs {
		recs[i].ID = maxID + int64(i) + 1
		values[i] = row
		args = append(args, recordArgs(recs[i])...)
	}

	query := `INSERT INTO records (` + recordColumns + `) VALUES ` + strings.Join(values, ", ")
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("batch inserting records: %w", err)
	}

	for i, in := range inputs {
		if recs[i].Tags, err = r.linkTags(ctx, tx, recs[i].ID, in.Tags); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return recs, nil
}

// recordArgs returns the bind values in recordColumns order.
func recordArgs(rec models.Record) []any {
	return []any{
		rec.ID,
		rec.Title,
		rec.Artist,
		rec.ReleaseDate.String(),
		rec.CoverURL,
		rec.DiscogsURL,
		rec.SpotifyURL,
		rec.Owned,
		rec.Wanted,
		rec.UserID,
	}
}

func (r *RecordRepository) linkTags(ctx context.Context, tx *sql.Tx, recordID int64, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return []models.Tag{}, nil
	}

	resolved, err := r.resolver.ResolveAll(ctx, tagQuerier{tx}, names)
	if err != nil {
		return nil, fmt.Errorf("resolving tags: %w", err)
	}
	if err := setRecordTags(ctx, tx, recordID, tags.IDs(resolved)); err != nil {
		return nil, err
	}
	return resolved, nil
}

// FindByID retrieves a record with its tags. Returns nil when absent.
func (r *RecordRepository) FindByID(ctx context.Context, id int64) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying record: %w", err)
	}

	recs := []models.Record{rec}
	if err := attachTags(ctx, r.db, recs); err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// FindAllByUser lists a user's records, narrowed by filter.
func (r *RecordRepository) FindAllByUser(ctx context.Context, userID int64, filter models.RecordFilter) ([]models.Record, error) {
	where, args := store.RecordPredicates(userID, filter).Build(store.Question, 0)
	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + where + ` ORDER BY id`

	recs, err := queryRecords(ctx, r.db, query, args...)
	if err != nil {
		return nil, err
	}
	if err := attachTags(ctx, r.db, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// RandomByUser picks one matching record uniformly at random.
func (r *RecordRepository) RandomByUser(ctx context.Context, userID int64, filter models.RecordFilter) (*models.Record, error) {
	where, args := store.RecordPredicates(userID, filter).Build(store.Question, 0)
	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + where + ` ORDER BY RANDOM() LIMIT 1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying random record: %w", err)
	}

	recs := []models.Record{rec}
	if err := attachTags(ctx, r.db, recs); err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// Delete removes a record and its tag links.
func (r *RecordRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records_tags WHERE record_id = ?`, id); err != nil {
		return fmt.Errorf("deleting record tags: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// queryRecords runs query and closes the rows before returning, so the
// single connection is free for the tag lookup that follows.
func queryRecords(ctx context.Context, q querier, query string, args ...any) ([]models.Record, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	recs := []models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return recs, nil
}

func attachTags(ctx context.Context, q querier, recs []models.Record) error {
	if len(recs) == 0 {
		return nil
	}

	ids := make([]any, len(recs))
	for i := range recs {
		ids[i] = recs[i].ID
	}

	byRecord, err := tagsForRecords(ctx, q, ids)
	if err != nil {
		return err
	}
	for i := range recs {
		recs[i].Tags = byRecord[recs[i].ID]
		if recs[i].Tags == nil {
			recs[i].Tags = []models.Tag{}
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (models.Record, error) {
	var (
		rec         models.Record
		releaseDate string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Artist,
		&releaseDate,
		&rec.CoverURL,
		&rec.DiscogsURL,
		&rec.SpotifyURL,
		&rec.Owned,
		&rec.Wanted,
		&rec.UserID,
	)
	if err != nil {
		return models.Record{}, err
	}
	if rec.ReleaseDate, err = models.ParseDate(releaseDate); err != nil {
		return models.Record{}, err
	}
	return rec, nil
}
