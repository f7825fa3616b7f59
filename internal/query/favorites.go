package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Favorite is one saved search, either lexical or fuzzy, at a fixed
// position in the caller's favorites list.
type Favorite struct {
	ID         uuid.UUID
	Name       string
	QueryText  string
	Match      string
	Position   int
	CreatedUTC time.Time
	IsFuzzy    bool
}

// SearchFavoritesService manages saved searches.
type SearchFavoritesService struct {
	db *sql.DB
}

// NewSearchFavoritesService builds a SearchFavoritesService.
func NewSearchFavoritesService(db *sql.DB) *SearchFavoritesService {
	return &SearchFavoritesService{db: db}
}

// Save inserts a new favorite at the end of the caller's list.
func (s *SearchFavoritesService) Save(ctx context.Context, name, queryText, match string, isFuzzy bool) (uuid.UUID, error) {
	var nextPosition int
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM search_favorites`)
	if err := row.Scan(&nextPosition); err != nil {
		return uuid.UUID{}, fmt.Errorf("compute next favorite position: %w", err)
	}

	id := uuid.New()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	fuzzyFlag := 0
	if isFuzzy {
		fuzzyFlag = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_favorites (id, name, query_text, match, position, created_utc, is_fuzzy)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id[:], name, queryText, match, nextPosition, now, fuzzyFlag)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("insert favorite: %w", err)
	}
	return id, nil
}

// List returns all favorites ordered by position.
func (s *SearchFavoritesService) List(ctx context.Context) ([]Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(query_text, ''), match, position, created_utc, is_fuzzy
		FROM search_favorites
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var out []Favorite
	for rows.Next() {
		var f Favorite
		var idBlob []byte
		var createdUTC string
		var fuzzyFlag int
		if err := rows.Scan(&idBlob, &f.Name, &f.QueryText, &f.Match, &f.Position, &createdUTC, &fuzzyFlag); err != nil {
			return nil, err
		}
		copy(f.ID[:], idBlob)
		f.CreatedUTC, _ = time.Parse(time.RFC3339Nano, createdUTC)
		f.IsFuzzy = fuzzyFlag != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// Delete removes a favorite by id and compacts the remaining positions.
func (s *SearchFavoritesService) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin favorite delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var position int
	row := tx.QueryRowContext(ctx, `SELECT position FROM search_favorites WHERE id = ?`, id[:])
	if err := row.Scan(&position); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("look up favorite position: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM search_favorites WHERE id = ?`, id[:]); err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE search_favorites SET position = position - 1 WHERE position > ?`, position); err != nil {
		return fmt.Errorf("compact favorite positions: %w", err)
	}
	return tx.Commit()
}
