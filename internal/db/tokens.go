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
)

// TokenRepository handles collection token database operations.
type TokenRepository struct {
	pool *pgxpool.Pool
}

var _ store.CollectionTokenStore = (*TokenRepository)(nil)

// Create issues a new token for userID.
func (r *TokenRepository) Create(ctx context.Context, userID int64) (*models.CollectionToken, error) {
	tok := models.NewCollectionToken(userID, time.Now())

	query := `
		INSERT INTO collection_tokens (token, user_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query, tok.Token, tok.UserID, tok.CreatedAt).Scan(&tok.ID)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("inserting collection token: %w", err)
	}
	return &tok, nil
}

// FindByToken looks a token up without any ownership check. Returns nil
// when the token is unknown.
func (r *TokenRepository) FindByToken(ctx context.Context, token string) (*models.CollectionToken, error) {
	tok, err := r.findOne(ctx, `WHERE token = $1`, token)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying collection token: %w", err)
	}
	return tok, nil
}

// FindByUser returns the user's token, or store.ErrNotFound.
func (r *TokenRepository) FindByUser(ctx context.Context, userID int64) (*models.CollectionToken, error) {
	tok, err := r.findOne(ctx, `WHERE user_id = $1`, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying collection token by user: %w", err)
	}
	return tok, nil
}

func (r *TokenRepository) findOne(ctx context.Context, where string, arg any) (*models.CollectionToken, error) {
	query := `SELECT id, token, user_id, created_at FROM collection_tokens ` + where

	var tok models.CollectionToken
	err := r.pool.QueryRow(ctx, query, arg).Scan(&tok.ID, &tok.Token, &tok.UserID, &tok.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// Delete removes a token by id.
func (r *TokenRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM collection_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting collection token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteAllByUser removes every token belonging to userID.
func (r *TokenRepository) DeleteAllByUser(ctx context.Context, userID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM collection_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting collection tokens: %w", err)
	}
	return nil
}

// Revoke deletes token if it belongs to userID. The row is locked between
// the ownership check and the delete.
func (r *TokenRepository) Revoke(ctx context.Context, token string, userID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id    int64
		owner int64
	)
	err = tx.QueryRow(ctx,
		`SELECT id, user_id FROM collection_tokens WHERE token = $1 FOR UPDATE`, token,
	).Scan(&id, &owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("locking collection token: %w", err)
	}
	if owner != userID {
		return store.ErrNotOwner
	}

	if _, err := tx.Exec(ctx, `DELETE FROM collection_tokens WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting collection token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
