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

// UserRepository handles user database operations.
type UserRepository struct {
	db *sql.DB
}

var _ store.UserStore = (*UserRepository)(nil)

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user models.User) (*models.User, error) {
	user.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO users (email, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email,
		user.Username,
		user.PasswordHash,
		formatTime(user.CreatedAt),
	).Scan(&user.ID)
	if isUniqueViolation(err) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return &user, nil
}

// FindByEmail retrieves a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `WHERE email = ?`, email)
}

// FindByID retrieves a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findOne(ctx, `WHERE id = ?`, id)
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT id, email, username, password_hash, created_at FROM users ` + where

	var (
		user      models.User
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &user, nil
}
