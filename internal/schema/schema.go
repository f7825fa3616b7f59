// Package schema owns the embedded storage's DDL and versioned migrations:
// the projection tables, their FTS5 companions, the write-ahead journal and
// its dead-letter queue, the reindex queue, suggestions, and search history
// and favorites.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docsearch/internal/logging"
)

// CurrentVersion is the highest migration index this build knows about.
const CurrentVersion = 0

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);
`

// migrations is an ordered list; never edit an applied entry, only append.
var migrations = []func(*sql.Tx) error{
	migrateV0,
}

// migrateV0 creates the full projection + WAJ + reindex + suggestion schema.
func migrateV0(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS search_document (
			file_id BLOB PRIMARY KEY,
			title TEXT,
			author TEXT,
			mime TEXT NOT NULL,
			metadata_text TEXT,
			metadata_json TEXT,
			created_utc TEXT NOT NULL,
			modified_utc TEXT NOT NULL,
			content_hash TEXT,
			stored_content_hash TEXT,
			stored_token_hash TEXT,
			content_size_bytes INTEGER
		);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS search_document_fts USING fts5(
			title,
			mime,
			author,
			metadata_text,
			metadata_json,
			tokenize="unicode61 remove_diacritics 2"
		);`,
		`CREATE TABLE IF NOT EXISTS file_search_map (
			file_id BLOB PRIMARY KEY,
			rowid_fts INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_file_search_map_rowid ON file_search_map(rowid_fts);`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS file_trgm USING fts5(
			trgm,
			tokenize="unicode61"
		);`,
		`CREATE TABLE IF NOT EXISTS file_trgm_map (
			file_id BLOB PRIMARY KEY,
			rowid_fts INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_file_trgm_map_rowid ON file_trgm_map(rowid_fts);`,

		`CREATE TABLE IF NOT EXISTS fts_write_ahead (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_id TEXT NOT NULL,
			op TEXT NOT NULL,
			content_hash TEXT,
			title_hash TEXT,
			enqueued_utc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fts_write_ahead_dlq (
			original_id INTEGER NOT NULL,
			file_id TEXT NOT NULL,
			op TEXT NOT NULL,
			content_hash TEXT,
			title_hash TEXT,
			enqueued_utc TEXT NOT NULL,
			dead_lettered_utc TEXT NOT NULL,
			error TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_waj_dlq_original_id ON fts_write_ahead_dlq(original_id);`,

		`CREATE TABLE IF NOT EXISTS reindex_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			enqueued_utc TEXT NOT NULL,
			processed_utc TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reindex_queue_pending ON reindex_queue(processed_utc, enqueued_utc, id);`,

		`CREATE TABLE IF NOT EXISTS suggestions (
			term TEXT NOT NULL,
			weight REAL NOT NULL,
			lang TEXT NOT NULL,
			source_field TEXT NOT NULL,
			UNIQUE(term, lang, source_field)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_suggestions_prefix ON suggestions(lang, term);`,

		`CREATE TABLE IF NOT EXISTS search_history (
			id BLOB PRIMARY KEY,
			query_text TEXT,
			match TEXT NOT NULL,
			created_utc TEXT NOT NULL,
			executions INTEGER NOT NULL DEFAULT 1,
			last_total_hits INTEGER
		);`,

		`CREATE TABLE IF NOT EXISTS search_favorites (
			id BLOB PRIMARY KEY,
			name TEXT NOT NULL,
			query_text TEXT,
			match TEXT NOT NULL,
			position INTEGER NOT NULL,
			created_utc TEXT NOT NULL,
			is_fuzzy INTEGER NOT NULL DEFAULT 0
		);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(context.Background(), stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// Pragmas applied on every connection open. Session-scoped pragmas like these
// reset on a fresh handle, so they are re-applied on every open, not once.
var Pragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA foreign_keys=ON;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA temp_store=MEMORY;",
}

// BusyTimeoutPragma builds the busy_timeout pragma for a deployment-tuned duration.
func BusyTimeoutPragma(d time.Duration) string {
	return fmt.Sprintf("PRAGMA busy_timeout=%d;", d.Milliseconds())
}

// ApplyPragmas runs the fixed pragma set plus a busy timeout against conn.
func ApplyPragmas(ctx context.Context, conn *sql.Conn, busyTimeout time.Duration) error {
	for _, p := range Pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	if _, err := conn.ExecContext(ctx, BusyTimeoutPragma(busyTimeout)); err != nil {
		return fmt.Errorf("apply busy_timeout pragma: %w", err)
	}
	return nil
}

// Ensure applies the schema_version table and all pending migrations.
func Ensure(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryBoot, "schema.Ensure")
	defer timer.Stop()

	if _, err := db.ExecContext(context.Background(), schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	row := db.QueryRowContext(context.Background(), "SELECT COALESCE(MAX(version), -1) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for v := current + 1; v < len(migrations); v++ {
		if err := runMigration(db, v); err != nil {
			return fmt.Errorf("run migration %d: %w", v, err)
		}
		logging.Boot("schema migration %d applied", v)
	}
	return nil
}

func runMigration(db *sql.DB, version int) error {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := migrations[version](tx); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(context.Background(), "INSERT INTO schema_version (version, applied_at) VALUES (?, ?)", version, now); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// Version returns the database's current schema version, or -1 if unset.
func Version(db *sql.DB) (int, error) {
	var version int
	row := db.QueryRowContext(context.Background(), "SELECT COALESCE(MAX(version), -1) FROM schema_version")
	err := row.Scan(&version)
	return version, err
}

// TableExists reports whether table exists in db.
func TableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table','view') AND name=?", table).Scan(&count)
	return err == nil && count > 0
}

// ColumnExists reports whether column exists on table.
func ColumnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
