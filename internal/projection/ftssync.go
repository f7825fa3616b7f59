package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"docsearch/internal/analyzer"
	"docsearch/internal/fileagg"
)

// syncFTSRows keeps search_document_fts/file_search_map in lockstep with the
// canonical search_document row: insert on first sight, update in place
// thereafter, since the FTS5 table here holds its own content rather than
// referencing search_document through an external-content definition.
func syncFTSRows(ctx context.Context, tx *sql.Tx, fileID fileagg.FileID, title, author, mime, metadataText, metadataJSON string) error {
	rowid, found, err := lookupRowid(ctx, tx, "file_search_map", fileID)
	if err != nil {
		return err
	}

	if found {
		_, err := tx.ExecContext(ctx,
			`UPDATE search_document_fts SET title = ?, mime = ?, author = ?, metadata_text = ?, metadata_json = ? WHERE rowid = ?`,
			title, mime, author, metadataText, metadataJSON, rowid)
		if err != nil {
			return fmt.Errorf("update search_document_fts: %w", err)
		}
		return nil
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO search_document_fts (title, mime, author, metadata_text, metadata_json) VALUES (?, ?, ?, ?, ?)`,
		title, mime, author, metadataText, metadataJSON)
	if err != nil {
		return fmt.Errorf("insert search_document_fts: %w", err)
	}
	newRowid, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read search_document_fts rowid: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO file_search_map (file_id, rowid_fts) VALUES (?, ?)`, fileID[:], newRowid); err != nil {
		return fmt.Errorf("insert file_search_map: %w", err)
	}
	return nil
}

// deleteFTSRows removes fileID's FTS row and map entry, if present.
func deleteFTSRows(ctx context.Context, tx *sql.Tx, fileID fileagg.FileID) error {
	rowid, found, err := lookupRowid(ctx, tx, "file_search_map", fileID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM search_document_fts WHERE rowid = ?`, rowid); err != nil {
		return fmt.Errorf("delete search_document_fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_search_map WHERE file_id = ?`, fileID[:]); err != nil {
		return fmt.Errorf("delete file_search_map: %w", err)
	}
	return nil
}

// defaultTrigramMaxTokens bounds the trigram shingle count when no
// TrigramConfig has been threaded through (the writer only needs the title
// field for drift detection; full field coverage is a query-time
// config concern in internal/query).
const defaultTrigramMaxTokens = 256

// syncTrigramRow keeps file_trgm/file_trgm_map in lockstep with the title's
// trigram shingling, mirroring syncFTSRows's insert-then-update shape.
func syncTrigramRow(ctx context.Context, tx *sql.Tx, fileID fileagg.FileID, title string) error {
	trgm := strings.Join(analyzer.Trigrams(title, defaultTrigramMaxTokens), " ")

	rowid, found, err := lookupRowid(ctx, tx, "file_trgm_map", fileID)
	if err != nil {
		return err
	}

	if found {
		if _, err := tx.ExecContext(ctx, `UPDATE file_trgm SET trgm = ? WHERE rowid = ?`, trgm, rowid); err != nil {
			return fmt.Errorf("update file_trgm: %w", err)
		}
		return nil
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO file_trgm (trgm) VALUES (?)`, trgm)
	if err != nil {
		return fmt.Errorf("insert file_trgm: %w", err)
	}
	newRowid, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read file_trgm rowid: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO file_trgm_map (file_id, rowid_fts) VALUES (?, ?)`, fileID[:], newRowid); err != nil {
		return fmt.Errorf("insert file_trgm_map: %w", err)
	}
	return nil
}

// deleteTrigramRow removes fileID's trigram row and map entry, if present.
func deleteTrigramRow(ctx context.Context, tx *sql.Tx, fileID fileagg.FileID) error {
	rowid, found, err := lookupRowid(ctx, tx, "file_trgm_map", fileID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_trgm WHERE rowid = ?`, rowid); err != nil {
		return fmt.Errorf("delete file_trgm: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_trgm_map WHERE file_id = ?`, fileID[:]); err != nil {
		return fmt.Errorf("delete file_trgm_map: %w", err)
	}
	return nil
}

func lookupRowid(ctx context.Context, tx *sql.Tx, mapTable string, fileID fileagg.FileID) (int64, bool, error) {
	var rowid int64
	err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT rowid_fts FROM %s WHERE file_id = ?`, mapTable), fileID[:]).Scan(&rowid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup %s rowid: %w", mapTable, err)
	}
	return rowid, true, nil
}
