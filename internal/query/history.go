package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one recorded search execution.
type HistoryEntry struct {
	ID             uuid.UUID
	QueryText      string
	Match          string
	CreatedUTC     time.Time
	Executions     int
	LastTotalHits  *int
}

// SearchHistoryService records and re-surfaces past search executions.
type SearchHistoryService struct {
	db *sql.DB
}

// NewSearchHistoryService builds a SearchHistoryService.
func NewSearchHistoryService(db *sql.DB) *SearchHistoryService {
	return &SearchHistoryService{db: db}
}

// Record logs one execution of queryText/match, bumping the execution
// counter when an identical (query_text, match) pair was already recorded.
func (s *SearchHistoryService) Record(ctx context.Context, queryText, match string, totalHits int) error {
	var idBlob []byte
	row := s.db.QueryRowContext(ctx, `SELECT id FROM search_history WHERE query_text = ? AND match = ?`, queryText, match)
	err := row.Scan(&idBlob)
	if err == nil {
		_, err := s.db.ExecContext(ctx, `UPDATE search_history SET executions = executions + 1, last_total_hits = ? WHERE id = ?`, totalHits, idBlob)
		if err != nil {
			return fmt.Errorf("bump search history entry: %w", err)
		}
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("look up search history entry: %w", err)
	}

	id := uuid.New()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO search_history (id, query_text, match, created_utc, executions, last_total_hits)
		VALUES (?, ?, ?, ?, 1, ?)
	`, id[:], queryText, match, now, totalHits)
	if err != nil {
		return fmt.Errorf("insert search history entry: %w", err)
	}
	return nil
}

// Recent returns the most recently created history entries, most recent
// first.
func (s *SearchHistoryService) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(query_text, ''), match, created_utc, executions, last_total_hits
		FROM search_history
		ORDER BY created_utc DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list search history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var idBlob []byte
		var createdUTC string
		var lastTotalHits sql.NullInt64
		if err := rows.Scan(&idBlob, &e.QueryText, &e.Match, &createdUTC, &e.Executions, &lastTotalHits); err != nil {
			return nil, err
		}
		copy(e.ID[:], idBlob)
		e.CreatedUTC, _ = time.Parse(time.RFC3339Nano, createdUTC)
		if lastTotalHits.Valid {
			v := int(lastTotalHits.Int64)
			e.LastTotalHits = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
