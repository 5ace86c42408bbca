// Package store defines the persistence contracts for records, tags,
// collection tokens and users. Backends live in internal/db (PostgreSQL),
// internal/sqlite and internal/memstore.
package store

import (
	"context"
	"errors"

	"github.com/justestif/go-record-collection/internal/models"
)

var (
	// ErrNotFound is returned when a lookup that must succeed finds nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write collides with a uniqueness
	// constraint.
	ErrConflict = errors.New("conflict")

	// ErrNotOwner is returned when a user mutates a resource owned by
	// another user.
	ErrNotOwner = errors.New("not owner")
)

// RecordStore persists records and their tag links.
type RecordStore interface {
	// Create inserts one record and links its tags in a single transaction.
	Create(ctx context.Context, userID int64, input models.RecordInput) (*models.Record, error)

	// CreateMany inserts all records with one multi-row statement and links
	// their tags, all in one transaction. Output order matches input order.
	CreateMany(ctx context.Context, userID int64, inputs []models.RecordInput) ([]models.Record, error)

	// FindByID returns nil and no error when the record does not exist.
	FindByID(ctx context.Context, id int64) (*models.Record, error)

	FindAllByUser(ctx context.Context, userID int64, filter models.RecordFilter) ([]models.Record, error)

	// RandomByUser returns nil and no error when nothing matches.
	RandomByUser(ctx context.Context, userID int64, filter models.RecordFilter) (*models.Record, error)

	// Delete removes the record and its tag links. Returns ErrNotFound if
	// there was no such record.
	Delete(ctx context.Context, id int64) error
}

// TagStore exposes tags outside of record writes.
type TagStore interface {
	FindOrCreate(ctx context.Context, name string) (*models.Tag, error)
	List(ctx context.Context) ([]models.Tag, error)
}

// CollectionTokenStore persists sharing tokens. A user holds at most one.
type CollectionTokenStore interface {
	// Create returns ErrConflict if the user already has a token.
	Create(ctx context.Context, userID int64) (*models.CollectionToken, error)

	// FindByToken returns nil and no error for an unknown token.
	FindByToken(ctx context.Context, token string) (*models.CollectionToken, error)

	// FindByUser returns ErrNotFound when the user has no token, whether it
	// was never created or has been revoked.
	FindByUser(ctx context.Context, userID int64) (*models.CollectionToken, error)

	Delete(ctx context.Context, id int64) error
	DeleteAllByUser(ctx context.Context, userID int64) error

	// Revoke deletes token after checking, in the same transaction, that it
	// belongs to userID. Returns ErrNotFound or ErrNotOwner and leaves the
	// token in place on failure.
	Revoke(ctx context.Context, token string, userID int64) error
}

// UserStore persists accounts.
type UserStore interface {
	// Create returns ErrConflict if the email is taken.
	Create(ctx context.Context, user models.User) (*models.User, error)

	// FindByEmail and FindByID return ErrNotFound when absent.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// Stores bundles one backend's repositories.
type Stores struct {
	Records RecordStore
	Tags    TagStore
	Tokens  CollectionTokenStore
	Users   UserStore

	// Ping checks backend health.
	Ping func(ctx context.Context) error
}
