package waj

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

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

func TestLogAndClear(t *testing.T) {
	db := openTestDB(t)
	j := New(db)
	ctx := context.Background()

	id, err := j.Log(ctx, nil, "file-1", OpIndex, nil, nil)
	require.NoError(t, err)
	require.NotZero(t, id)

	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, j.Clear(ctx, nil, id))
	pending, err = j.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestLogSuppressedIsNoop(t *testing.T) {
	db := openTestDB(t)
	j := New(db)
	ctx := Suppress(context.Background())

	id, err := j.Log(ctx, nil, "file-1", OpIndex, nil, nil)
	require.NoError(t, err)
	require.Zero(t, id)

	pending, err := j.Pending(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestMoveToDeadLetterIsAtomic(t *testing.T) {
	db := openTestDB(t)
	j := New(db)
	ctx := context.Background()

	id, err := j.Log(ctx, nil, "file-1", OpIndex, nil, nil)
	require.NoError(t, err)

	entries, err := j.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, j.MoveToDeadLetter(ctx, entries[0], "invalid file identifier"))

	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM fts_write_ahead_dlq WHERE original_id = ?", id).Scan(&count))
	require.Equal(t, 1, count)
}

func TestDeadLettersListsAndPurgeRemoves(t *testing.T) {
	db := openTestDB(t)
	j := New(db)
	ctx := context.Background()

	id, err := j.Log(ctx, nil, "file-1", OpIndex, nil, nil)
	require.NoError(t, err)
	entries, err := j.Pending(ctx)
	require.NoError(t, err)
	require.NoError(t, j.MoveToDeadLetter(ctx, entries[0], "malformed file identifier"))

	letters, err := j.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	require.Equal(t, id, letters[0].OriginalID)
	require.Equal(t, "malformed file identifier", letters[0].Error)

	require.NoError(t, j.PurgeDeadLetter(ctx, id))
	letters, err = j.DeadLetters(ctx)
	require.NoError(t, err)
	require.Empty(t, letters)

	err = j.PurgeDeadLetter(ctx, id)
	require.Error(t, err)
}

func TestPendingOrderedByID(t *testing.T) {
	db := openTestDB(t)
	j := New(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := j.Log(ctx, nil, "file", OpIndex, nil, nil)
		require.NoError(t, err)
	}

	entries, err := j.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.True(t, entries[0].ID < entries[1].ID)
	require.True(t, entries[1].ID < entries[2].ID)
}
