package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SuggestionSource identifies which field a harvested suggestion came from.
type SuggestionSource string

const (
	SourceTitle    SuggestionSource = "title"
	SourceAuthor   SuggestionSource = "author"
	SourceFilename SuggestionSource = "filename"
	SourceMetadata SuggestionSource = "metadata"
)

// harvestWeights assigns each source field's contribution to a term's
// aggregate suggestion weight.
var harvestWeights = map[SuggestionSource]float64{
	SourceTitle:    5,
	SourceAuthor:   3,
	SourceFilename: 2,
	SourceMetadata: 1,
}

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Term   string
	Weight float64
}

// SuggestionService serves prefix autocomplete and harvests new terms into
// the suggestions dictionary from indexed fields.
type SuggestionService struct {
	db *sql.DB
}

// NewSuggestionService builds a SuggestionService.
func NewSuggestionService(db *sql.DB) *SuggestionService {
	return &SuggestionService{db: db}
}

// Suggest returns up to limit terms matching prefix (case-insensitive),
// ordered by weight desc then term asc.
func (s *SuggestionService) Suggest(ctx context.Context, prefix, lang string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT term, SUM(weight) AS total_weight
		FROM suggestions
		WHERE lang = ? AND term LIKE ? ESCAPE '\'
		GROUP BY term
		ORDER BY total_weight DESC, term ASC
		LIMIT ?
	`, lang, escapeLike(prefix)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("suggestion prefix query: %w", err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var s Suggestion
		if err := rows.Scan(&s.Term, &s.Weight); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Harvest records term as seen in source for lang, summing weight into any
// existing (term, lang, source) row.
func (s *SuggestionService) Harvest(ctx context.Context, tx *sql.Tx, term string, source SuggestionSource, lang string) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	weight := harvestWeights[source]
	if weight == 0 {
		weight = 1
	}

	exec := sqlExecerFromTx(s.db, tx)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO suggestions (term, weight, lang, source_field)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(term, lang, source_field) DO UPDATE SET weight = suggestions.weight + excluded.weight
	`, term, weight, lang, string(source))
	if err != nil {
		return fmt.Errorf("harvest suggestion %q: %w", term, err)
	}
	return nil
}

// HarvestFields harvests each whitespace-separated word of title, author,
// filename and metadata text in one call, each under its own source.
func (s *SuggestionService) HarvestFields(ctx context.Context, tx *sql.Tx, lang, title, author, filename, metadataText string) error {
	fields := []struct {
		value  string
		source SuggestionSource
	}{
		{title, SourceTitle},
		{author, SourceAuthor},
		{filename, SourceFilename},
		{metadataText, SourceMetadata},
	}
	for _, f := range fields {
		for _, term := range strings.Fields(f.value) {
			if err := s.Harvest(ctx, tx, term, f.source, lang); err != nil {
				return err
			}
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func sqlExecerFromTx(db *sql.DB, tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return db
}
