// Package projection implements the projection writer: transactional
// upsert/force_replace/delete against the lexical index, guarded by an
// explicit WriteScope, an optimistic hash check, and a busy-retry ladder.
package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/mattn/go-sqlite3"

	"docsearch/internal/analyzer"
	"docsearch/internal/config"
	"docsearch/internal/docerrors"
	"docsearch/internal/fileagg"
	"docsearch/internal/logging"
	"docsearch/internal/schema"
	"docsearch/internal/waj"
)

// Row mirrors the search_document projection row.
type Row struct {
	FileID            fileagg.FileID
	Title             *string
	Author            *string
	Mime              string
	MetadataText      *string
	MetadataJSON      *string
	CreatedUTC        time.Time
	ModifiedUTC       time.Time
	ContentHash       *string
	StoredContentHash *string
	StoredTokenHash   *string
}

// Writer owns a dbpool connection's projection writes; WriteScopes it
// mints are only valid against this instance.
type Writer struct {
	analyzer  *analyzer.Analyzer
	journal   *waj.Journal
	cap       schema.Capability
	busyRetry config.BusyRetryConfig
}

// New builds a Writer. cap is the storage capability snapshot discovered
// once at startup ; journal is the WAJ this writer logs through.
func New(a *analyzer.Analyzer, j *waj.Journal, cap schema.Capability, busyRetry config.BusyRetryConfig) *Writer {
	return &Writer{analyzer: a, journal: j, cap: cap, busyRetry: busyRetry}
}

// busyDelaysMS is the retry ladder from 25, 50, 100, 200, 400ms.
func (w *Writer) busyDelaysMS() []int {
	if len(w.busyRetry.BackoffMS) > 0 {
		return w.busyRetry.BackoffMS
	}
	return []int{25, 50, 100, 200, 400}
}

// withBusyRetry runs op, retrying on SQLITE_BUSY/SQLITE_LOCKED up to
// MaxAttempts times with the configured exponential-ish backoff ladder.
// Non-busy errors propagate immediately; telemetry is recorded per retry.
func (w *Writer) withBusyRetry(ctx context.Context, label string, op func() error) error {
	delays := w.busyDelaysMS()
	maxAttempts := w.busyRetry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = len(delays)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isBusyError(lastErr) {
			return lastErr
		}
		if attempt >= maxAttempts {
			break
		}

		logging.Get(logging.CategoryProjection).Warn("%s: storage busy, retry %d/%d", label, attempt+1, maxAttempts)
		delayMS := delays[attempt%len(delays)]
		jitter := time.Duration(rand.Intn(delayMS/4+1)) * time.Millisecond
		select {
		case <-time.After(time.Duration(delayMS)*time.Millisecond + jitter):
		case <-ctx.Done():
			return docerrors.Wrap(docerrors.KindCanceled, ctx.Err(), "%s canceled during busy-retry", label)
		}
	}
	return docerrors.Wrap(docerrors.KindStorageBusy, lastErr, "%s exhausted busy-retry", label)
}

func isBusyError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// isFatalCorruption reports whether err indicates the FTS schema itself is
// broken (the SearchIndexCorrupted escalation), as opposed to a
// transient busy condition.
func isFatalCorruption(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrCorrupt || sqliteErr.Code == sqlite3.ErrNotADB
	}
	return false
}

func normalizedFields(a *analyzer.Analyzer, f fileagg.File) (title, author, metadataText string, err error) {
	title, err = a.Normalize(f.Title(), "")
	if err != nil {
		return "", "", "", err
	}
	author, err = a.Normalize(f.Author(), "")
	if err != nil {
		return "", "", "", err
	}
	metadataText, err = a.Normalize(f.MetadataText(), "")
	if err != nil {
		return "", "", "", err
	}
	return title, author, metadataText, nil
}

// fileIDBytes returns id's 16-byte form for binding against the BLOB
// file_id primary key (a bare id[:] on a function-call result does not
// compile; this gives slicing something addressable to work on).
func fileIDBytes(id fileagg.FileID) []byte {
	return id[:]
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// contentSizeBytes reads the file's content once to populate the facet-only
// content_size_bytes column; a read failure just leaves the facet bucket
// unset rather than failing the whole upsert.
func contentSizeBytes(ctx context.Context, f fileagg.File) *int64 {
	content, err := f.ContentBytes(ctx)
	if err != nil {
		return nil
	}
	n := int64(len(content))
	return &n
}

// UpsertResult reports whether an upsert actually changed the stored row.
type UpsertResult struct {
	RowsAffected int64
}

// Upsert runs the guarded upsert algorithm.
func (w *Writer) Upsert(ctx context.Context, scope *WriteScope, f fileagg.File, expectedContentHash, expectedTokenHash *string, newContentHash, newTokenHash string) (UpsertResult, error) {
	if err := w.verify(scope); err != nil {
		return UpsertResult{}, err
	}
	if !w.cap.FTSAvailable {
		logging.Projection("FTS unavailable (%s), upsert is a no-op", w.cap.FailureReason)
		return UpsertResult{}, nil
	}

	title, author, metadataText, err := normalizedFields(w.analyzer, f)
	if err != nil {
		return UpsertResult{}, err
	}

	wajID, err := w.journal.Log(ctx, scope.Tx, f.ID().String(), waj.OpIndex, nullableString(newContentHash), nullableString(newTokenHash))
	if err != nil {
		return UpsertResult{}, err
	}

	sizeBytes := contentSizeBytes(ctx, f)

	var affected int64
	err = w.withBusyRetry(ctx, "upsert", func() error {
		n, execErr := execUpsert(ctx, scope.Tx, f, title, author, metadataText, newContentHash, newTokenHash, sizeBytes, expectedContentHash, expectedTokenHash)
		if execErr != nil {
			return execErr
		}
		affected = n
		return nil
	})
	if err != nil {
		if isFatalCorruption(err) {
			return UpsertResult{}, docerrors.Wrap(docerrors.KindSearchIndexCorrupted, err, "projection upsert failed")
		}
		return UpsertResult{}, err
	}

	if affected == 0 {
		driftErr, readErr := w.classifyZeroRowUpsert(ctx, scope.Tx, f, title, author, metadataText, newContentHash, newTokenHash)
		if readErr != nil {
			return UpsertResult{}, readErr
		}
		return UpsertResult{}, driftErr
	}

	if err := syncFTSRows(ctx, scope.Tx, f.ID(), title, author, f.Mime(), metadataText, f.MetadataJSON()); err != nil {
		return UpsertResult{}, err
	}
	if err := syncTrigramRow(ctx, scope.Tx, f.ID(), title); err != nil {
		return UpsertResult{}, err
	}

	if err := w.journal.Clear(ctx, scope.Tx, wajID); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{RowsAffected: affected}, nil
}

// ForceReplace performs an unconditional upsert with no guard, used after
// the coordinator catches AnalyzerOrContentDrift.
func (w *Writer) ForceReplace(ctx context.Context, scope *WriteScope, f fileagg.File, newContentHash, newTokenHash string) (UpsertResult, error) {
	if err := w.verify(scope); err != nil {
		return UpsertResult{}, err
	}
	if !w.cap.FTSAvailable {
		return UpsertResult{}, nil
	}

	title, author, metadataText, err := normalizedFields(w.analyzer, f)
	if err != nil {
		return UpsertResult{}, err
	}

	wajID, err := w.journal.Log(ctx, scope.Tx, f.ID().String(), waj.OpIndex, nullableString(newContentHash), nullableString(newTokenHash))
	if err != nil {
		return UpsertResult{}, err
	}

	sizeBytes := contentSizeBytes(ctx, f)

	var affected int64
	err = w.withBusyRetry(ctx, "force_replace", func() error {
		n, execErr := execUpsert(ctx, scope.Tx, f, title, author, metadataText, newContentHash, newTokenHash, sizeBytes, nil, nil)
		if execErr != nil {
			return execErr
		}
		affected = n
		return nil
	})
	if err != nil {
		if isFatalCorruption(err) {
			return UpsertResult{}, docerrors.Wrap(docerrors.KindSearchIndexCorrupted, err, "projection force_replace failed")
		}
		return UpsertResult{}, err
	}

	if err := syncFTSRows(ctx, scope.Tx, f.ID(), title, author, f.Mime(), metadataText, f.MetadataJSON()); err != nil {
		return UpsertResult{}, err
	}
	if err := syncTrigramRow(ctx, scope.Tx, f.ID(), title); err != nil {
		return UpsertResult{}, err
	}
	if err := w.journal.Clear(ctx, scope.Tx, wajID); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{RowsAffected: affected}, nil
}

// Delete removes file_id's projection row and its FTS/trigram companions.
func (w *Writer) Delete(ctx context.Context, scope *WriteScope, fileID fileagg.FileID) error {
	if err := w.verify(scope); err != nil {
		return err
	}
	if !w.cap.FTSAvailable {
		return nil
	}

	wajID, err := w.journal.Log(ctx, scope.Tx, fileID.String(), waj.OpDelete, nil, nil)
	if err != nil {
		return err
	}

	err = w.withBusyRetry(ctx, "delete", func() error {
		_, execErr := scope.Tx.ExecContext(ctx, `DELETE FROM search_document WHERE file_id = ?`, fileID[:])
		return execErr
	})
	if err != nil {
		if isFatalCorruption(err) {
			return docerrors.Wrap(docerrors.KindSearchIndexCorrupted, err, "projection delete failed")
		}
		return err
	}

	if err := deleteFTSRows(ctx, scope.Tx, fileID); err != nil {
		return err
	}
	if err := deleteTrigramRow(ctx, scope.Tx, fileID); err != nil {
		return err
	}
	return w.journal.Clear(ctx, scope.Tx, wajID)
}

func execUpsert(ctx context.Context, tx *sql.Tx, f fileagg.File, title, author, metadataText, newContentHash, newTokenHash string, sizeBytes *int64, expectedContentHash, expectedTokenHash *string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO search_document (file_id, title, author, mime, metadata_text, metadata_json, created_utc, modified_utc, content_hash, stored_content_hash, stored_token_hash, content_size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			mime = excluded.mime,
			metadata_text = excluded.metadata_text,
			metadata_json = excluded.metadata_json,
			modified_utc = excluded.modified_utc,
			content_hash = excluded.content_hash,
			stored_content_hash = excluded.stored_content_hash,
			stored_token_hash = excluded.stored_token_hash,
			content_size_bytes = excluded.content_size_bytes
		WHERE (? IS NULL OR search_document.stored_content_hash IS ?)
		  AND (? IS NULL OR search_document.stored_token_hash IS ?)
	`,
		fileIDBytes(f.ID()), title, author, f.Mime(), metadataText, f.MetadataJSON(),
		f.CreatedUTC().Format(time.RFC3339Nano), now, nullableString(f.ContentHash()), newContentHash, newTokenHash, sizeBytes,
		expectedContentHash, expectedContentHash, expectedTokenHash, expectedTokenHash,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert search_document: %w", err)
	}
	return res.RowsAffected()
}

// classifyZeroRowUpsert disambiguates AnalyzerOrContentDrift from
// StaleProjectionUpdate when a guarded upsert affects zero rows.
func (w *Writer) classifyZeroRowUpsert(ctx context.Context, tx *sql.Tx, f fileagg.File, title, author, metadataText, newContentHash, newTokenHash string) (error, error) {
	var storedTitle, storedAuthor, storedMime, storedMetadataText, storedMetadataJSON sql.NullString
	var storedContentHash, storedTokenHash sql.NullString
	row := tx.QueryRowContext(ctx, `SELECT title, author, mime, metadata_text, metadata_json, stored_content_hash, stored_token_hash FROM search_document WHERE file_id = ?`, fileIDBytes(f.ID()))
	err := row.Scan(&storedTitle, &storedAuthor, &storedMime, &storedMetadataText, &storedMetadataJSON, &storedContentHash, &storedTokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return docerrors.New(docerrors.KindStaleProjectionUpdate, "no projection row exists for file %s", f.ID()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read current projection row: %w", err)
	}

	matches := storedTitle.String == title &&
		storedAuthor.String == author &&
		storedMime.String == f.Mime() &&
		storedMetadataText.String == metadataText &&
		storedMetadataJSON.String == f.MetadataJSON()

	if matches {
		return docerrors.New(docerrors.KindAnalyzerOrContentDrift, "stored hashes stale for file %s", f.ID()), nil
	}
	return docerrors.New(docerrors.KindStaleProjectionUpdate, "projection row for file %s changed since expected hashes were read", f.ID()), nil
}
