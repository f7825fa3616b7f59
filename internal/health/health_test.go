package health

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"docsearch/internal/reindex"
	"docsearch/internal/schema"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, schema.Ensure(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStatusForDepthThresholds(t *testing.T) {
	require.Equal(t, StatusHealthy, StatusForDepth(0))
	require.Equal(t, StatusHealthy, StatusForDepth(99))
	require.Equal(t, StatusDegraded, StatusForDepth(100))
	require.Equal(t, StatusDegraded, StatusForDepth(999))
	require.Equal(t, StatusUnhealthy, StatusForDepth(1000))
}

func TestSnapshotReflectsDLQDepthAndReindexState(t *testing.T) {
	db := openTestDB(t)
	m := NewMonitor(db)

	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusHealthy, snap.Status)
	require.Zero(t, snap.DLQDepth)
	require.Equal(t, reindex.StateStopped, snap.ReindexState)

	_, err = db.Exec(`INSERT INTO fts_write_ahead_dlq (original_id, file_id, op, enqueued_utc, dead_lettered_utc, error) VALUES (1, 'f', 'index', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', 'boom')`)
	require.NoError(t, err)

	m.ReportReindexState(reindex.StateRunning)

	snap, err = m.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, snap.DLQDepth)
	require.Equal(t, reindex.StateRunning, snap.ReindexState)
}
