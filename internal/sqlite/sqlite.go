// Package sqlite provides embedded SQLite storage for the record collection,
// for single-user installs and tests that want real SQL without a server.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/justestif/go-record-collection/internal/store"
	"github.com/justestif/go-record-collection/internal/tags"
)

//go:embed schema.sql
var schema string

// timeLayout is how timestamps are stored in TEXT columns.
const timeLayout = time.RFC3339Nano

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is a SQLite-backed store.
type DB struct {
	db       *sql.DB
	resolver *tags.Resolver
	logger   *slog.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithTagResolver sets the resolver used for tag find-or-create.
func WithTagResolver(r *tags.Resolver) Option {
	return func(db *DB) {
		if r != nil {
			db.resolver = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// Open opens (or creates) the database at path, applies pragmas and the
// schema. Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory
	// database lives only as long as its connection.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	db := NewWithDB(conn, opts...)
	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB wraps an existing handle without touching its schema.
func NewWithDB(conn *sql.DB, opts ...Option) *DB {
	db := &DB{db: conn, logger: slog.Default()}
	for _, opt := range opts {
		opt(db)
	}
	db.logger = db.logger.With("component", "sqlite")
	if db.resolver == nil {
		db.resolver = tags.NewResolver(tags.WithLogger(db.logger))
	}
	return db
}

// Migrate applies the schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.db.Close()
}

// Ping checks that the database is usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// Records returns a RecordRepository.
func (db *DB) Records() *RecordRepository {
	return &RecordRepository{db: db.db, resolver: db.resolver}
}

// Tags returns a TagRepository.
func (db *DB) Tags() *TagRepository {
	return &TagRepository{db: db.db, resolver: db.resolver}
}

// Tokens returns a TokenRepository.
func (db *DB) Tokens() *TokenRepository {
	return &TokenRepository{db: db.db}
}

// Users returns a UserRepository.
func (db *DB) Users() *UserRepository {
	return &UserRepository{db: db.db}
}

// Stores returns every repository behind the store interfaces.
func (db *DB) Stores() store.Stores {
	return store.Stores{
		Records: db.Records(),
		Tags:    db.Tags(),
		Tokens:  db.Tokens(),
		Users:   db.Users(),
		Ping:    db.Ping,
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
