package projection

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"docsearch/internal/analyzer"
	"docsearch/internal/config"
	"docsearch/internal/docerrors"
	"docsearch/internal/fileagg"
	"docsearch/internal/schema"
	"docsearch/internal/waj"
)

func testWriter(t *testing.T) (*Writer, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "projection.db"))
	require.NoError(t, err)
	require.NoError(t, schema.Ensure(db))
	t.Cleanup(func() { db.Close() })

	a, err := analyzer.New(config.DefaultConfig().Analyzer)
	require.NoError(t, err)

	cap := schema.Snapshot(db)
	require.True(t, cap.FTSAvailable)

	w := New(a, waj.New(db), cap, config.BusyRetryConfig{MaxAttempts: 3, BackoffMS: []int{1, 2, 4}})
	return w, db
}

func beginScope(t *testing.T, w *Writer, db *sql.DB) *WriteScope {
	t.Helper()
	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	scope, err := w.Begin(context.Background(), conn)
	require.NoError(t, err)
	return scope
}

func sampleFile(title string) *fileagg.MemoryFile {
	return &fileagg.MemoryFile{
		TitleValue: title,
		MimeValue:  "text/plain",
		CreatedAt:  time.Now().UTC(),
		ModifiedAt: time.Now().UTC(),
	}
}

func TestUpsertRequiresWriteScope(t *testing.T) {
	w, _ := testWriter(t)
	f := sampleFile("Quarterly Report")
	_, err := w.Upsert(context.Background(), nil, f, nil, nil, "c1", "t1")
	require.True(t, docerrors.Is(err, docerrors.KindNoAmbientTransaction))
}

func TestUpsertRejectsForeignScope(t *testing.T) {
	w1, db := testWriter(t)
	w2, _ := testWriter(t)
	scope := beginScope(t, w2, db)

	f := sampleFile("Quarterly Report")
	_, err := w1.Upsert(context.Background(), scope, f, nil, nil, "c1", "t1")
	require.True(t, docerrors.Is(err, docerrors.KindWrongTransaction))
}

func TestUpsertInsertsNewRow(t *testing.T) {
	w, db := testWriter(t)
	scope := beginScope(t, w, db)
	ctx := context.Background()

	f := sampleFile("Quarterly Report")
	res, err := w.Upsert(ctx, scope, f, nil, nil, "content-hash-1", "token-hash-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.RowsAffected)
	require.NoError(t, scope.Tx.Commit())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM search_document").Scan(&count))
	require.Equal(t, 1, count)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM search_document_fts").Scan(&count))
	require.Equal(t, 1, count)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM file_trgm").Scan(&count))
	require.Equal(t, 1, count)

	var pending int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM fts_write_ahead").Scan(&pending))
	require.Zero(t, pending)
}

func TestUpsertGuardMismatchIsStaleOrDrift(t *testing.T) {
	w, db := testWriter(t)
	ctx := context.Background()

	scope1 := beginScope(t, w, db)
	f := sampleFile("Quarterly Report")
	_, err := w.Upsert(ctx, scope1, f, nil, nil, "content-hash-1", "token-hash-1")
	require.NoError(t, err)
	require.NoError(t, scope1.Tx.Commit())

	// Guard against the wrong expected hash: row content still matches the
	// normalized fields we would have written, so this is drift, not staleness.
	scope2 := beginScope(t, w, db)
	wrong := "not-the-expected-hash"
	_, err = w.Upsert(ctx, scope2, f, &wrong, &wrong, "content-hash-1", "token-hash-1")
	require.True(t, docerrors.Is(err, docerrors.KindAnalyzerOrContentDrift))
	require.NoError(t, scope2.Tx.Rollback())
}

func TestUpsertGuardMismatchDetectsStaleWhenFieldsDiffer(t *testing.T) {
	w, db := testWriter(t)
	ctx := context.Background()

	scope1 := beginScope(t, w, db)
	f := sampleFile("Quarterly Report")
	_, err := w.Upsert(ctx, scope1, f, nil, nil, "content-hash-1", "token-hash-1")
	require.NoError(t, err)
	require.NoError(t, scope1.Tx.Commit())

	f.TitleValue = "Annual Report"
	scope2 := beginScope(t, w, db)
	wrong := "not-the-expected-hash"
	_, err = w.Upsert(ctx, scope2, f, &wrong, &wrong, "content-hash-2", "token-hash-2")
	require.True(t, docerrors.Is(err, docerrors.KindStaleProjectionUpdate))
	require.NoError(t, scope2.Tx.Rollback())
}

func TestUpsertGuardedUpdateSucceedsWithMatchingHashes(t *testing.T) {
	w, db := testWriter(t)
	ctx := context.Background()

	scope1 := beginScope(t, w, db)
	f := sampleFile("Quarterly Report")
	_, err := w.Upsert(ctx, scope1, f, nil, nil, "content-hash-1", "token-hash-1")
	require.NoError(t, err)
	require.NoError(t, scope1.Tx.Commit())

	scope2 := beginScope(t, w, db)
	expectedContent := "content-hash-1"
	expectedToken := "token-hash-1"
	res, err := w.Upsert(ctx, scope2, f, &expectedContent, &expectedToken, "content-hash-2", "token-hash-2")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.RowsAffected)
	require.NoError(t, scope2.Tx.Commit())
}

func TestForceReplaceIgnoresGuard(t *testing.T) {
	w, db := testWriter(t)
	ctx := context.Background()

	scope1 := beginScope(t, w, db)
	f := sampleFile("Quarterly Report")
	_, err := w.Upsert(ctx, scope1, f, nil, nil, "content-hash-1", "token-hash-1")
	require.NoError(t, err)
	require.NoError(t, scope1.Tx.Commit())

	scope2 := beginScope(t, w, db)
	res, err := w.ForceReplace(ctx, scope2, f, "content-hash-3", "token-hash-3")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.RowsAffected)
	require.NoError(t, scope2.Tx.Commit())
}

func TestDeleteRemovesProjectionAndCompanions(t *testing.T) {
	w, db := testWriter(t)
	ctx := context.Background()

	scope1 := beginScope(t, w, db)
	f := sampleFile("Quarterly Report")
	_, err := w.Upsert(ctx, scope1, f, nil, nil, "content-hash-1", "token-hash-1")
	require.NoError(t, err)
	require.NoError(t, scope1.Tx.Commit())

	scope2 := beginScope(t, w, db)
	require.NoError(t, w.Delete(ctx, scope2, f.ID()))
	require.NoError(t, scope2.Tx.Commit())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM search_document").Scan(&count))
	require.Zero(t, count)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM file_search_map").Scan(&count))
	require.Zero(t, count)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM file_trgm_map").Scan(&count))
	require.Zero(t, count)
}

func TestUpsertNoopWhenFTSUnavailable(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a, err := analyzer.New(config.DefaultConfig().Analyzer)
	require.NoError(t, err)
	w := New(a, waj.New(db), schema.Capability{FTSAvailable: false, FailureReason: "schema not migrated"}, config.BusyRetryConfig{})

	res, err := w.Upsert(context.Background(), &WriteScope{owner: w}, sampleFile("x"), nil, nil, "c", "t")
	require.NoError(t, err)
	require.Zero(t, res.RowsAffected)
}
