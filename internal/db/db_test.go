package db

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-record-collection/internal/store"
	"github.com/justestif/go-record-collection/internal/storetest"
)

// openTestDB connects to TEST_DATABASE_URL and empties every table. Tests
// are skipped when the variable is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	_, err = db.pool.Exec(ctx,
		`TRUNCATE records_tags, records, tags, collection_tokens, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return db
}

func TestConformance(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	storetest.Run(t, func(t *testing.T) store.Stores {
		return openTestDB(t).Stores()
	})
}

func TestAllocateRecordIDsAscending(t *testing.T) {
	db := openTestDB(t)

	ids, err := allocateRecordIDs(context.Background(), db.pool, 5)
	require.NoError(t, err)
	require.Len(t, ids, 5)
	for i := 1; i < len(ids); i++ {
		require.Greater(t, ids[i], ids[i-1])
	}
}

func TestIsUniqueViolation(t *testing.T) {
	require.False(t, isUniqueViolation(nil))
	require.False(t, isUniqueViolation(context.Canceled))
}

func TestIsTxConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", context.Canceled, false},
		{"unique violation", &pgconn.PgError{Code: uniqueViolation}, false},
		{"deadlock", &pgconn.PgError{Code: deadlockDetected}, true},
		{"serialization", &pgconn.PgError{Code: serializationFailure}, true},
		{"wrapped deadlock", fmt.Errorf("inserting tag: %w", &pgconn.PgError{Code: deadlockDetected}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTxConflict(tt.err))
		})
	}
}

func TestRetryTxGivesUpWithConflict(t *testing.T) {
	db := openTestDB(t)

	attempts := 0
	err := retryTx(context.Background(), db.pool, func(tx pgx.Tx) error {
		attempts++
		return fmt.Errorf("resolving tags: %w", &pgconn.PgError{Code: deadlockDetected})
	})

	require.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, maxTxAttempts, attempts)
}

func TestRetryTxRerunsAfterDeadlock(t *testing.T) {
	db := openTestDB(t)

	attempts := 0
	err := retryTx(context.Background(), db.pool, func(tx pgx.Tx) error {
		attempts++
		if attempts == 1 {
			return &pgconn.PgError{Code: deadlockDetected}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
