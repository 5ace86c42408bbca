// Package db provides PostgreSQL storage for the record collection.
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/justestif/go-record-collection/internal/store"
	"github.com/justestif/go-record-collection/internal/tags"
)

//go:embed schema.sql
var schema string

// PostgreSQL SQLSTATEs handled by the repositories.
const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// maxTxAttempts bounds how often retryTx reruns a write transaction.
const maxTxAttempts = 3

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool     *pgxpool.Pool
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

// WithLogger sets the logger. Queries are traced at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string, opts ...Option) (*DB, error) {
	db := &DB{logger: slog.Default()}
	for _, opt := range opts {
		opt(db)
	}
	db.logger = db.logger.With("component", "db")
	if db.resolver == nil {
		db.resolver = tags.NewResolver(tags.WithLogger(db.logger))
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	config.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   tracelog.LoggerFunc(db.logQuery),
		LogLevel: tracelog.LogLevelDebug,
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.pool = pool
	return db, nil
}

func (db *DB) logQuery(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	attrs := make([]any, 0, len(data)*2)
	for k, v := range data {
		if k == "args" {
			continue
		}
		attrs = append(attrs, k, v)
	}
	if level <= tracelog.LogLevelError && level != tracelog.LogLevelNone {
		db.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	db.logger.DebugContext(ctx, msg, attrs...)
}

// Migrate applies the schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Records returns a RecordRepository.
func (db *DB) Records() *RecordRepository {
	return &RecordRepository{pool: db.pool, resolver: db.resolver}
}

// Tags returns a TagRepository.
func (db *DB) Tags() *TagRepository {
	return &TagRepository{pool: db.pool, resolver: db.resolver}
}

// Tokens returns a TokenRepository.
func (db *DB) Tokens() *TokenRepository {
	return &TokenRepository{pool: db.pool}
}

// Users returns a UserRepository.
func (db *DB) Users() *UserRepository {
	return &UserRepository{pool: db.pool}
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
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// isTxConflict reports whether PostgreSQL aborted the transaction as a
// deadlock victim or serialization failure. The whole transaction can be
// rerun.
func isTxConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == deadlockDetected || pgErr.Code == serializationFailure
}

// retryTx runs fn in a transaction, rerunning it from the start when it is
// aborted by a concurrent one. Exhausting the attempts yields
// store.ErrConflict.
func retryTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = pgx.BeginFunc(ctx, pool, fn)
		if !isTxConflict(err) {
			return err
		}
		slog.Default().DebugContext(ctx, "transaction aborted by concurrent writer, retrying",
			"component", "db", "attempt", attempt, "error", err)
	}
	return fmt.Errorf("%w: %w", store.ErrConflict, err)
}
