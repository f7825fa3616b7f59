// Package waj implements the write-ahead journal: a durable log of
// pending projection operations with crash-recovery replay and a
// dead-letter queue for poison entries.
package waj

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docsearch/internal/docerrors"
	"docsearch/internal/logging"
)

// Op is the operation a journal entry records.
type Op string

const (
	OpIndex  Op = "index"
	OpDelete Op = "delete"
)

// Entry is a write-ahead journal row. State machine:
// Enqueued -> Cleared on success; Enqueued -> DeadLettered on replay
// failure or unknown operation. No other transitions.
type Entry struct {
	ID          int64
	FileID      string
	Op          Op
	ContentHash *string
	TitleHash   *string
	EnqueuedUTC time.Time
}

// DeadLetterEntry is an append-only record of a poison journal entry.
// Cleared only by operator action.
type DeadLetterEntry struct {
	OriginalID      int64
	FileID          string
	Op              Op
	ContentHash     *string
	TitleHash       *string
	EnqueuedUTC     time.Time
	DeadLetteredUTC time.Time
	Error           string
}

type suppressKey struct{}

// Suppress returns a context in which logging is disabled, used by the
// replay path so it does not recursively re-log the entry it is currently
// replaying. Task-local via context.Context, never a thread-static flag.
func Suppress(ctx context.Context) context.Context {
	n, _ := ctx.Value(suppressKey{}).(int)
	return context.WithValue(ctx, suppressKey{}, n+1)
}

func suppressed(ctx context.Context) bool {
	n, _ := ctx.Value(suppressKey{}).(int)
	return n > 0
}

// Journal operates the write-ahead log against a *sql.DB (or a *sql.Tx via
// the tx-scoped helpers below).
type Journal struct {
	db *sql.DB
}

// New builds a Journal over db.
func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Log writes an entry and returns its id. Suppressed contexts (replay) are
// a no-op returning id 0.
func (j *Journal) Log(ctx context.Context, tx *sql.Tx, fileID string, op Op, contentHash, titleHash *string) (int64, error) {
	if suppressed(ctx) {
		return 0, nil
	}
	if fileID == "" {
		return 0, docerrors.New(docerrors.KindInvalidArgument, "file id required")
	}

	execer := queryer(j.db, tx)
	res, err := execer.ExecContext(ctx,
		`INSERT INTO fts_write_ahead (file_id, op, content_hash, title_hash, enqueued_utc) VALUES (?, ?, ?, ?, ?)`,
		fileID, string(op), contentHash, titleHash, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("log waj entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read waj entry id: %w", err)
	}
	logging.WAJDebug("logged entry id=%d file_id=%s op=%s", id, fileID, op)
	return id, nil
}

// Clear deletes an entry, intended to run in the same transaction as the
// projection mutation it guards.
func (j *Journal) Clear(ctx context.Context, tx *sql.Tx, id int64) error {
	if id == 0 {
		return nil // suppressed Log never produced a real id
	}
	execer := queryer(j.db, tx)
	if _, err := execer.ExecContext(ctx, `DELETE FROM fts_write_ahead WHERE id = ?`, id); err != nil {
		return fmt.Errorf("clear waj entry %d: %w", id, err)
	}
	logging.WAJDebug("cleared entry id=%d", id)
	return nil
}

// MoveToDeadLetter performs an atomic insert-into-DLQ + delete-from-journal
// for entry, recording reason as the error string.
func (j *Journal) MoveToDeadLetter(ctx context.Context, entry Entry, reason string) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dead-letter transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO fts_write_ahead_dlq (original_id, file_id, op, content_hash, title_hash, enqueued_utc, dead_lettered_utc, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.FileID, string(entry.Op), entry.ContentHash, entry.TitleHash,
		entry.EnqueuedUTC.Format(time.RFC3339Nano), time.Now().UTC().Format(time.RFC3339Nano), reason)
	if err != nil {
		return fmt.Errorf("insert dead-letter entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fts_write_ahead WHERE id = ?`, entry.ID); err != nil {
		return fmt.Errorf("delete journal entry %d: %w", entry.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dead-letter transaction: %w", err)
	}
	logging.WAJ("dead-lettered entry id=%d file_id=%s reason=%q", entry.ID, entry.FileID, reason)
	return nil
}

// Pending loads all journal entries ordered by id ascending (submission
// order).
func (j *Journal) Pending(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, file_id, op, content_hash, title_hash, enqueued_utc FROM fts_write_ahead ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var op string
		var enqueued string
		if err := rows.Scan(&e.ID, &e.FileID, &op, &e.ContentHash, &e.TitleHash, &enqueued); err != nil {
			return nil, fmt.Errorf("scan waj entry: %w", err)
		}
		e.Op = Op(op)
		if t, err := time.Parse(time.RFC3339Nano, enqueued); err == nil {
			e.EnqueuedUTC = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeadLetters loads all dead-lettered entries ordered by dead-lettered time
// ascending, oldest poison entry first.
func (j *Journal) DeadLetters(ctx context.Context) ([]DeadLetterEntry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT original_id, file_id, op, content_hash, title_hash, enqueued_utc, dead_lettered_utc, error
		FROM fts_write_ahead_dlq ORDER BY dead_lettered_utc ASC`)
	if err != nil {
		return nil, fmt.Errorf("query dead letters: %w", err)
	}
	defer rows.Close()

	var entries []DeadLetterEntry
	for rows.Next() {
		var e DeadLetterEntry
		var op, enqueued, deadLettered string
		if err := rows.Scan(&e.OriginalID, &e.FileID, &op, &e.ContentHash, &e.TitleHash, &enqueued, &deadLettered, &e.Error); err != nil {
			return nil, fmt.Errorf("scan dead letter entry: %w", err)
		}
		e.Op = Op(op)
		if t, err := time.Parse(time.RFC3339Nano, enqueued); err == nil {
			e.EnqueuedUTC = t
		}
		if t, err := time.Parse(time.RFC3339Nano, deadLettered); err == nil {
			e.DeadLetteredUTC = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeDeadLetter removes one dead-lettered entry by its original journal
// id, the operator action DeadLetterEntry's doc comment refers to.
func (j *Journal) PurgeDeadLetter(ctx context.Context, originalID int64) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM fts_write_ahead_dlq WHERE original_id = ?`, originalID)
	if err != nil {
		return fmt.Errorf("purge dead letter %d: %w", originalID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("purge dead letter %d: %w", originalID, err)
	}
	if n == 0 {
		return docerrors.New(docerrors.KindInvalidArgument, "dead letter entry %d not found", originalID)
	}
	logging.WAJ("purged dead letter entry id=%d", originalID)
	return nil
}

type execContexter interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func queryer(db *sql.DB, tx *sql.Tx) execContexter {
	if tx != nil {
		return tx
	}
	return db
}
