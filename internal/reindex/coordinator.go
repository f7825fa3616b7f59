package reindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docsearch/internal/config"
	"docsearch/internal/dbpool"
	"docsearch/internal/docerrors"
	"docsearch/internal/fileagg"
	"docsearch/internal/logging"
	"docsearch/internal/projection"
	"docsearch/internal/schema"
	"docsearch/internal/signature"
)

// Outcome is the terminal result of running the reindex algorithm for one
// file. Success, NoChanges, and NotFound all mark the queue entry
// processed; Failed leaves it pending and bumps its retry count.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeNoChanges Outcome = "no_changes"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeFailed    Outcome = "failed"
)

// Coordinator is the synchronous half: it decides same-transaction vs.
// deferred indexing and runs the reindex algorithm for a single file.
type Coordinator struct {
	pool   *dbpool.Pool
	writer *projection.Writer
	sig    *signature.Calculator
	agg    fileagg.Aggregate
	queue  *Queue
	mode   config.IndexingMode
}

// New builds a Coordinator.
func New(pool *dbpool.Pool, writer *projection.Writer, sig *signature.Calculator, agg fileagg.Aggregate, queue *Queue, mode config.IndexingMode) *Coordinator {
	return &Coordinator{pool: pool, writer: writer, sig: sig, agg: agg, queue: queue, mode: mode}
}

// Notify is the entry point an aggregate change calls after committing its
// own write: in SameTransaction mode it indexes the file immediately (on
// its own connection, since the caller's transaction already committed);
// in Deferred mode it only records an intent for the background processor.
func (c *Coordinator) Notify(ctx context.Context, fileID fileagg.FileID, reason Reason) (Outcome, error) {
	if c.mode == config.ModeDeferred {
		if _, err := c.queue.Enqueue(ctx, nil, fileID.String(), reason); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeNoChanges, nil
	}
	return c.Reindex(ctx, fileID)
}

// Reindex runs the six-step reindex algorithm for fileID: read, compute
// signature, guarded upsert (falling back to force_replace on detected
// drift), and confirm indexed state on the aggregate. A file whose recorded
// index state already matches its computed signature and content hash
// returns NoChanges without writing.
func (c *Coordinator) Reindex(ctx context.Context, fileID fileagg.FileID) (Outcome, error) {
	f, err := c.agg.Get(ctx, fileID)
	if errors.Is(err, fileagg.ErrNotFound) {
		return OutcomeNotFound, nil
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("read file %s from aggregate: %w", fileID, err)
	}

	lease, err := c.pool.Rent(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("rent connection: %w", err)
	}
	defer lease.Release()

	scope, err := c.writer.Begin(ctx, lease.Conn)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("begin write scope: %w", err)
	}

	outcome, err := c.reindexWithScope(ctx, scope, f)
	if err != nil {
		_ = scope.Tx.Rollback()
		return OutcomeFailed, err
	}
	if outcome != OutcomeSuccess {
		_ = scope.Tx.Rollback()
		return outcome, nil
	}
	if err := scope.Tx.Commit(); err != nil {
		return OutcomeFailed, fmt.Errorf("commit reindex transaction: %w", err)
	}
	return OutcomeSuccess, nil
}

func (c *Coordinator) reindexWithScope(ctx context.Context, scope *projection.WriteScope, f fileagg.File) (Outcome, error) {
	sig, err := c.sig.Compute(ctx, f)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("compute signature: %w", err)
	}

	state := f.SearchIndexState()
	expectedContentHash := nilIfEmpty(state.IndexedContentHash)
	expectedTokenHash := nilIfEmpty(state.TokenHash)
	newContentHash := f.ContentHash()
	newTokenHash := sig.TokenHash
	if state.IndexedContentHash != "" &&
		state.IndexedContentHash == newContentHash &&
		state.TokenHash == newTokenHash &&
		state.AnalyzerVersion == sig.AnalyzerVersion &&
		state.IndexedTitle == sig.NormalizedTitle {
		return OutcomeNoChanges, nil
	}

	res, err := c.writer.Upsert(ctx, scope, f, expectedContentHash, expectedTokenHash, newContentHash, newTokenHash)
	if docerrors.Is(err, docerrors.KindAnalyzerOrContentDrift) {
		logging.Reindex("file %s: analyzer/content drift detected, force-replacing", f.ID())
		res, err = c.writer.ForceReplace(ctx, scope, f, newContentHash, newTokenHash)
	}
	if err != nil {
		return OutcomeFailed, err
	}
	if res.RowsAffected == 0 {
		return OutcomeNoChanges, nil
	}

	confirmErr := c.agg.ConfirmIndexed(ctx, f.ID(), fileagg.SearchIndexState{
		LastIndexedUTC:     time.Now().UTC(),
		SchemaVersion:      schema.CurrentVersion,
		AnalyzerVersion:    sig.AnalyzerVersion,
		TokenHash:          sig.TokenHash,
		IndexedContentHash: newContentHash,
		IndexedTitle:       sig.NormalizedTitle,
	})
	if confirmErr != nil {
		return OutcomeFailed, fmt.Errorf("confirm indexed state: %w", confirmErr)
	}
	return OutcomeSuccess, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
