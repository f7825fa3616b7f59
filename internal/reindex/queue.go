// Package reindex implements the index coordinator that decides
// immediate vs. deferred indexing, the durable reindex queue, and the
// background batch processor that drains it with bounded retries and
// exponential backoff.
package reindex

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Reason identifies why a file was enqueued for reindexing.
type Reason string

const (
	ReasonContentChanged  Reason = "content-changed"
	ReasonAnalyzerChanged Reason = "analyzer-changed"
	ReasonIntegrityRepair Reason = "integrity-repair"
	ReasonExternalRequest Reason = "external-request"
)

// QueueEntry is a reindex_queue row.
type QueueEntry struct {
	ID           int64
	FileID       string
	Reason       Reason
	EnqueuedUTC  time.Time
	ProcessedUTC *time.Time
	RetryCount   int
}

// Queue wraps the reindex_queue table.
type Queue struct {
	db *sql.DB
}

// NewQueue builds a Queue over db.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue records a pending reindex intent. If tx is non-nil the insert
// joins the caller's transaction (used when an integrity audit enqueues
// alongside other writes); otherwise it commits immediately.
func (q *Queue) Enqueue(ctx context.Context, tx *sql.Tx, fileID string, reason Reason) (int64, error) {
	execer := sqlExecer(q.db, tx)
	res, err := execer.ExecContext(ctx,
		`INSERT INTO reindex_queue (file_id, reason, enqueued_utc, retry_count) VALUES (?, ?, ?, 0)`,
		fileID, string(reason), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("enqueue reindex entry: %w", err)
	}
	return res.LastInsertId()
}

// OldestPending returns up to limit unprocessed entries, oldest first.
func (q *Queue) OldestPending(ctx context.Context, limit int) ([]QueueEntry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, file_id, reason, enqueued_utc, processed_utc, retry_count
		 FROM reindex_queue
		 WHERE processed_utc IS NULL
		 ORDER BY enqueued_utc ASC, id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending reindex entries: %w", err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		var reason, enqueued string
		var processed sql.NullString
		if err := rows.Scan(&e.ID, &e.FileID, &reason, &enqueued, &processed, &e.RetryCount); err != nil {
			return nil, fmt.Errorf("scan reindex entry: %w", err)
		}
		e.Reason = Reason(reason)
		if t, err := time.Parse(time.RFC3339Nano, enqueued); err == nil {
			e.EnqueuedUTC = t
		}
		if processed.Valid {
			if t, err := time.Parse(time.RFC3339Nano, processed.String); err == nil {
				e.ProcessedUTC = &t
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkProcessed stamps an entry as done (Success, NoChanges, and NotFound
// all mark processed per the reindex algorithm's terminal outcomes).
func (q *Queue) MarkProcessed(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE reindex_queue SET processed_utc = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("mark reindex entry %d processed: %w", id, err)
	}
	return nil
}

// IncrementRetry bumps retry_count, leaving the entry pending for the next
// iteration (the Failed outcome).
func (q *Queue) IncrementRetry(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE reindex_queue SET retry_count = retry_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment retry for reindex entry %d: %w", id, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func sqlExecer(db *sql.DB, tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return db
}
