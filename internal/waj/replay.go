package waj

import (
	"context"
	"fmt"

	"docsearch/internal/fileagg"
	"docsearch/internal/logging"
)

// Indexer is the subset of the projection writer the replay path needs.
// Defined here (not imported from internal/projection) to avoid a
// waj<->projection import cycle; internal/projection's *Writer satisfies it.
type Indexer interface {
	Index(ctx context.Context, f fileagg.File) error
	Delete(ctx context.Context, fileID fileagg.FileID) error
}

// ReplayPending replays every pending entry in submission order,
// reconstructing the file from the aggregate for OpIndex or issuing
// OpDelete directly. Unparseable file ids, missing files, and unknown
// operations are routed to the DLQ. Replay is retry-safe: the logging
// suppression context ensures the projection writer does not relog the
// entry it is currently replaying.
func ReplayPending(ctx context.Context, j *Journal, agg fileagg.Aggregate, indexer Indexer) (replayed, deadLettered int, err error) {
	ctx = Suppress(ctx)

	entries, err := j.Pending(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load pending entries: %w", err)
	}
	logging.WAJ("replaying %d pending entries", len(entries))

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return replayed, deadLettered, fmt.Errorf("replay canceled: %w", err)
		}

		if dlqErr := replayOne(ctx, j, agg, indexer, e); dlqErr != "" {
			if err := j.MoveToDeadLetter(ctx, e, dlqErr); err != nil {
				return replayed, deadLettered, fmt.Errorf("dead-letter entry %d: %w", e.ID, err)
			}
			deadLettered++
			continue
		}

		if err := j.Clear(ctx, nil, e.ID); err != nil {
			return replayed, deadLettered, fmt.Errorf("clear replayed entry %d: %w", e.ID, err)
		}
		replayed++
	}

	logging.WAJ("replay complete: replayed=%d dead_lettered=%d", replayed, deadLettered)
	return replayed, deadLettered, nil
}

// replayOne processes a single entry and returns a non-empty dead-letter
// reason if it could not be applied.
func replayOne(ctx context.Context, j *Journal, agg fileagg.Aggregate, indexer Indexer, e Entry) string {
	switch e.Op {
	case OpDelete:
		id, err := fileagg.ParseFileID(e.FileID)
		if err != nil {
			return "invalid file identifier"
		}
		if err := indexer.Delete(ctx, id); err != nil {
			return fmt.Sprintf("delete failed: %v", err)
		}
		return ""

	case OpIndex:
		id, err := fileagg.ParseFileID(e.FileID)
		if err != nil {
			return "invalid file identifier"
		}
		f, err := agg.Get(ctx, id)
		if err != nil {
			if err == fileagg.ErrNotFound {
				return "file not found"
			}
			return fmt.Sprintf("aggregate lookup failed: %v", err)
		}
		if err := indexer.Index(ctx, f); err != nil {
			return fmt.Sprintf("index failed: %v", err)
		}
		return ""

	default:
		return fmt.Sprintf("unknown operation %q", e.Op)
	}
}
