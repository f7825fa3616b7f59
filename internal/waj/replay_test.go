package waj

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"docsearch/internal/fileagg"
)

var errBoom = errors.New("boom")

type fakeIndexer struct {
	indexed []fileagg.FileID
	deleted []fileagg.FileID
	failOn  fileagg.FileID
}

func (f *fakeIndexer) Index(ctx context.Context, file fileagg.File) error {
	if file.ID() == f.failOn {
		return errBoom
	}
	f.indexed = append(f.indexed, file.ID())
	return nil
}

func (f *fakeIndexer) Delete(ctx context.Context, id fileagg.FileID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestReplayPendingIndexesAndDeletes(t *testing.T) {
	db := openTestDB(t)
	j := New(db)
	agg := fileagg.NewMemoryAggregate()
	indexer := &fakeIndexer{}
	ctx := context.Background()

	f := &fileagg.MemoryFile{TitleValue: "Quarterly Report", MimeValue: "text/plain"}
	id := agg.Put(f)

	_, err := j.Log(ctx, nil, id.String(), OpIndex, nil, nil)
	require.NoError(t, err)

	other := agg.Put(&fileagg.MemoryFile{TitleValue: "To Delete"})
	_, err = j.Log(ctx, nil, other.String(), OpDelete, nil, nil)
	require.NoError(t, err)

	replayed, dead, err := ReplayPending(ctx, j, agg, indexer)
	require.NoError(t, err)
	require.Equal(t, 2, replayed)
	require.Zero(t, dead)
	require.Contains(t, indexer.indexed, id)
	require.Contains(t, indexer.deleted, other)

	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestReplayPendingDeadLettersInvalidFileID(t *testing.T) {
	db := openTestDB(t)
	j := New(db)
	agg := fileagg.NewMemoryAggregate()
	indexer := &fakeIndexer{}
	ctx := context.Background()

	_, err := j.Log(ctx, nil, "not-a-uuid", OpIndex, nil, nil)
	require.NoError(t, err)

	replayed, dead, err := ReplayPending(ctx, j, agg, indexer)
	require.NoError(t, err)
	require.Zero(t, replayed)
	require.Equal(t, 1, dead)

	var errText string
	require.NoError(t, db.QueryRow("SELECT error FROM fts_write_ahead_dlq LIMIT 1").Scan(&errText))
	require.Equal(t, "invalid file identifier", errText)
}

func TestReplayPendingDeadLettersMissingFile(t *testing.T) {
	db := openTestDB(t)
	j := New(db)
	agg := fileagg.NewMemoryAggregate()
	indexer := &fakeIndexer{}
	ctx := context.Background()

	missing := agg.Put(&fileagg.MemoryFile{})
	agg.Delete(missing)

	_, err := j.Log(ctx, nil, missing.String(), OpIndex, nil, nil)
	require.NoError(t, err)

	_, dead, err := ReplayPending(ctx, j, agg, indexer)
	require.NoError(t, err)
	require.Equal(t, 1, dead)
}

func TestReplayPendingDeadLettersUnknownOp(t *testing.T) {
	db := openTestDB(t)
	j := New(db)
	agg := fileagg.NewMemoryAggregate()
	indexer := &fakeIndexer{}
	ctx := context.Background()

	_, err := j.Log(ctx, nil, "file-1", Op("mutate"), nil, nil)
	require.NoError(t, err)

	_, dead, err := ReplayPending(ctx, j, agg, indexer)
	require.NoError(t, err)
	require.Equal(t, 1, dead)
}
