package schema

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEnsureCreatesAllTables(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Ensure(db))

	required := []string{
		"search_document", "search_document_fts", "file_search_map",
		"file_trgm", "file_trgm_map",
		"fts_write_ahead", "fts_write_ahead_dlq",
		"reindex_queue", "suggestions", "search_history", "search_favorites",
	}
	for _, table := range required {
		require.True(t, TableExists(db, table), "expected table %s", table)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Ensure(db))
	require.NoError(t, Ensure(db))

	v, err := Version(db)
	require.NoError(t, err)
	require.Equal(t, CurrentVersion, v)
}

func TestSnapshotReportsAvailability(t *testing.T) {
	db := openTestDB(t)

	cap := Snapshot(db)
	require.False(t, cap.FTSAvailable)
	require.NotEmpty(t, cap.FailureReason)

	require.NoError(t, Ensure(db))
	cap = Snapshot(db)
	require.True(t, cap.FTSAvailable)
	require.True(t, cap.TrigramAvailable)
}

func TestColumnExists(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Ensure(db))

	require.True(t, ColumnExists(db, "search_document", "stored_token_hash"))
	require.False(t, ColumnExists(db, "search_document", "nonexistent_column"))
}
