package projection

import (
	"context"
	"fmt"

	"docsearch/internal/dbpool"
	"docsearch/internal/fileagg"
	"docsearch/internal/waj"
)

// ReplayIndexer adapts a Writer to waj.Indexer for crash-recovery replay:
// each call rents its own connection and WriteScope, since the journal
// replays one entry at a time outside of any caller-held transaction.
type ReplayIndexer struct {
	Writer *Writer
	Pool   *dbpool.Pool
}

var _ waj.Indexer = (*ReplayIndexer)(nil)

// Index reconstructs the projection row unconditionally (replay has no
// prior expected hashes to guard against), using the file's own stored
// content/token hashes as the new values.
func (r *ReplayIndexer) Index(ctx context.Context, f fileagg.File) error {
	lease, err := r.Pool.Rent(ctx)
	if err != nil {
		return fmt.Errorf("rent connection for replay index: %w", err)
	}
	defer lease.Release()

	scope, err := r.Writer.Begin(ctx, lease.Conn)
	if err != nil {
		return fmt.Errorf("begin replay scope: %w", err)
	}

	state := f.SearchIndexState()
	if _, err := r.Writer.ForceReplace(ctx, scope, f, state.IndexedContentHash, state.TokenHash); err != nil {
		_ = scope.Tx.Rollback()
		return err
	}
	return scope.Tx.Commit()
}

// Delete removes fileID's projection row.
func (r *ReplayIndexer) Delete(ctx context.Context, fileID fileagg.FileID) error {
	lease, err := r.Pool.Rent(ctx)
	if err != nil {
		return fmt.Errorf("rent connection for replay delete: %w", err)
	}
	defer lease.Release()

	scope, err := r.Writer.Begin(ctx, lease.Conn)
	if err != nil {
		return fmt.Errorf("begin replay scope: %w", err)
	}

	if err := r.Writer.Delete(ctx, scope, fileID); err != nil {
		_ = scope.Tx.Rollback()
		return err
	}
	return scope.Tx.Commit()
}
