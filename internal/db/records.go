package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/store"
	"github.com/justestif/go-record-collection/internal/tags"
)

const recordColumns = `id, title, artist, release_date, cover_url, discogs_url, spotify_url, owned, wanted, user_id`

// RecordRepository handles record database operations.
type RecordRepository struct {
	pool     *pgxpool.Pool
	resolver *tags.Resolver
}

var _ store.RecordStore = (*RecordRepository)(nil)

// Create inserts a record and links its tags in one transaction.
func (r *RecordRepository) Create(ctx context.Context, userID int64, input models.RecordInput) (*models.Record, error) {
	rec, err := input.ToRecord(userID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO records (title, artist, release_date, cover_url, discogs_url, spotify_url, owned, wanted, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err = retryTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			rec.Title,
			rec.Artist,
			rec.ReleaseDate.Time,
			rec.CoverURL,
			rec.DiscogsURL,
			rec.SpotifyURL,
			rec.Owned,
			rec.Wanted,
			rec.UserID,
		).Scan(&rec.ID)
		if err != nil {
			return fmt.Errorf("inserting record: %w", err)
		}

		rec.Tags, err = r.linkTags(ctx, tx, rec.ID, input.Tags)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateMany inserts records with a single multi-row statement. Ids are
// allocated from the sequence first so each row keeps its input position.
func (r *RecordRepository) CreateMany(ctx context.Context, userID int64, inputs []models.RecordInput) ([]models.Record, error) {
	if len(inputs) == 0 {
		return []models.Record{}, nil
	}

	recs := make([]models.Record, len(inputs))
	var allTags []string
	for i, in := range inputs {
		rec, err := in.ToRecord(userID)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		recs[i] = rec
		allTags = append(allTags, in.Tags...)
	}

	query := `
		INSERT INTO records (id, title, artist, release_date, cover_url, discogs_url, spotify_url, owned, wanted, user_id)
		SELECT * FROM unnest(
			$1::bigint[], $2::text[], $3::text[], $4::date[], $5::text[],
			$6::text[], $7::text[], $8::bool[], $9::bool[], $10::bigint[]
		)
	`
	err := retryTx(ctx, r.pool, func(tx pgx.Tx) error {
		ids, err := allocateRecordIDs(ctx, tx, len(recs))
		if err != nil {
			return err
		}

		titles := make([]string, len(recs))
		artists := make([]string, len(recs))
		releaseDates := make([]time.Time, len(recs))
		coverURLs := make([]string, len(recs))
		discogsURLs := make([]*string, len(recs))
		spotifyURLs := make([]*string, len(recs))
		owned := make([]bool, len(recs))
		wanted := make([]bool, len(recs))
		userIDs := make([]int64, len(recs))

		for i := range recs {
			recs[i].ID = ids[i]
			titles[i] = recs[i].Title
			artists[i] = recs[i].Artist
			releaseDates[i] = recs[i].ReleaseDate.Time
			coverURLs[i] = recs[i].CoverURL
			discogsURLs[i] = recs[i].DiscogsURL
			spotifyURLs[i] = recs[i].SpotifyURL
			owned[i] = recs[i].Owned
			wanted[i] = recs[i].Wanted
			userIDs[i] = recs[i].UserID
		}

		_, err = tx.Exec(ctx, query,
			ids, titles, artists, releaseDates, coverURLs,
			discogsURLs, spotifyURLs, owned, wanted, userIDs,
		)
		if err != nil {
			return fmt.Errorf("batch inserting records: %w", err)
		}

		// Create every new tag of the batch up front, in slug order, so
		// concurrent batches lock new tag rows in the same order.
		if _, err := r.resolver.ResolveAll(ctx, tagQuerier{tx}, allTags); err != nil {
			return fmt.Errorf("resolving tags: %w", err)
		}

		for i, in := range inputs {
			if recs[i].Tags, err = r.linkTags(ctx, tx, recs[i].ID, in.Tags); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func allocateRecordIDs(ctx context.Context, q querier, n int) ([]int64, error) {
	query := `
		SELECT nextval(pg_get_serial_sequence('records', 'id'))
		FROM generate_series(1, $1)
		ORDER BY 1
	`
	rows, err := q.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("allocating record ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scanning record ids: %w", err)
	}
	if len(ids) != n {
		return nil, fmt.Errorf("allocating record ids: got %d, want %d", len(ids), n)
	}
	return ids, nil
}

// linkTags resolves names inside tx and replaces the record's tag links.
func (r *RecordRepository) linkTags(ctx context.Context, tx pgx.Tx, recordID int64, names []string) ([]models.Tag, error) {
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
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying record: %w", err)
	}

	byRecord, err := tagsForRecords(ctx, r.pool, []int64{rec.ID})
	if err != nil {
		return nil, err
	}
	rec.Tags = tagsOrEmpty(byRecord[rec.ID])
	return &rec, nil
}

// FindAllByUser lists a user's records, narrowed by filter.
func (r *RecordRepository) FindAllByUser(ctx context.Context, userID int64, filter models.RecordFilter) ([]models.Record, error) {
	where, args := store.RecordPredicates(userID, filter).Build(store.Dollar, 0)
	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + where + ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
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

	if err := r.attachTags(ctx, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// RandomByUser picks one matching record uniformly at random.
func (r *RecordRepository) RandomByUser(ctx context.Context, userID int64, filter models.RecordFilter) (*models.Record, error) {
	where, args := store.RecordPredicates(userID, filter).Build(store.Dollar, 0)
	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + where + ` ORDER BY random() LIMIT 1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying random record: %w", err)
	}

	recs := []models.Record{rec}
	if err := r.attachTags(ctx, recs); err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// Delete removes a record and its tag links.
func (r *RecordRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM records_tags WHERE record_id = $1`, id); err != nil {
		return fmt.Errorf("deleting record tags: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (r *RecordRepository) attachTags(ctx context.Context, recs []models.Record) error {
	if len(recs) == 0 {
		return nil
	}

	ids := make([]int64, len(recs))
	for i := range recs {
		ids[i] = recs[i].ID
	}

	byRecord, err := tagsForRecords(ctx, r.pool, ids)
	if err != nil {
		return err
	}
	for i := range recs {
		recs[i].Tags = tagsOrEmpty(byRecord[recs[i].ID])
	}
	return nil
}

func scanRecord(row pgx.Row) (models.Record, error) {
	var (
		rec         models.Record
		releaseDate time.Time
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
	rec.ReleaseDate = models.NewDate(releaseDate)
	return rec, nil
}

func tagsOrEmpty(t []models.Tag) []models.Tag {
	if t == nil {
		return []models.Tag{}
	}
	return t
}
