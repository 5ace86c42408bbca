package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/store"
)

// TokenRepository handles collection token database operations.
type TokenRepository struct {
	db *sql.DB
}

var _ store.CollectionTokenStore = (*TokenRepository)(nil)

// Create issues a new token for userID.
func (r *TokenRepository) Create(ctx context.Context, userID int64) (*models.CollectionToken, error) {
	tok := models.NewCollectionToken(userID, time.Now())

	query := `
		INSERT INTO collection_tokens (token, user_id, created_at)
		VALUES (?, ?, ?)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, tok.Token, tok.UserID, formatTime(tok.CreatedAt)).Scan(&tok.ID)
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
	tok, err := r.findOne(ctx, `WHERE token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying collection token: %w", err)
	}
	return tok, nil
}

// FindByUser returns the user's token, or store.ErrNotFound.
func (r *TokenRepository) FindByUser(ctx context.Context, userID int64) (*models.CollectionToken, error) {
	tok, err := r.findOne(ctx, `WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying collection token by user: %w", err)
	}
	return tok, nil
}

func (r *TokenRepository) findOne(ctx context.Context, where string, arg any) (*models.CollectionToken, error) {
	query := `SELECT id, token, user_id, created_at FROM collection_tokens ` + where

	var (
		tok       models.CollectionToken
		createdAt string
	)
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&tok.ID, &tok.Token, &tok.UserID, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if tok.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &tok, nil
}

// Delete removes a token by id.
func (r *TokenRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM collection_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting collection token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting collection token: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteAllByUser removes every token belonging to userID.
func (r *TokenRepository) DeleteAllByUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM collection_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("deleting collection tokens: %w", err)
	}
	return nil
}

// Revoke deletes token if it belongs to userID, checking ownership and
// deleting in one transaction.
func (r *TokenRepository) Revoke(ctx context.Context, token string, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id, owner int64
	err = tx.QueryRowContext(ctx, `SELECT id, user_id FROM collection_tokens WHERE token = ?`, token).Scan(&id, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying collection token: %w", err)
	}
	if owner != userID {
		return store.ErrNotOwner
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM collection_tokens WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting collection token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
