package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"docsearch/internal/analyzer"
)

// runTrigram executes the fuzzy fallback: a trigram MATCH against file_trgm
// narrows candidates, then a Jaccard similarity between the query's
// trigram set and each candidate's own trigram set ranks and filters them.
func runTrigram(ctx context.Context, db *sql.DB, plan QueryPlan) ([]Hit, error) {
	if !plan.NeedsTrigram || plan.TrigramMatch == "" {
		return nil, nil
	}

	querySet := trigramSet(plan.QueryTrigrams)
	if len(querySet) == 0 {
		return nil, nil
	}

	where, args := lexicalWhere(plan)
	stmt := fmt.Sprintf(`
		SELECT sd.file_id, sd.title, sd.author, sd.mime, sd.metadata_text, sd.metadata_json,
		       sd.modified_utc, sd.content_size_bytes, t.trgm
		FROM file_trgm t
		JOIN file_trgm_map m ON m.rowid_fts = t.rowid
		JOIN search_document sd ON sd.file_id = m.file_id
		WHERE file_trgm MATCH ?
		%s
		LIMIT ?
	`, where)

	queryArgs := append([]interface{}{plan.TrigramMatch}, args...)
	queryArgs = append(queryArgs, candidateCap)

	rows, err := db.QueryContext(ctx, stmt, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("trigram match query: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var fileIDBlob []byte
		var modifiedUTC, trgmField string
		var contentSize sql.NullInt64

		if err := rows.Scan(&fileIDBlob, &h.Title, &h.Author, &h.Mime, &h.MetadataText, &h.MetadataJSON,
			&modifiedUTC, &contentSize, &trgmField); err != nil {
			return nil, fmt.Errorf("scan trigram hit: %w", err)
		}

		candidateSet := trigramSet(strings.Fields(trgmField))
		similarity := jaccard(querySet, candidateSet)
		if similarity <= 0 {
			continue
		}

		h.FileID = formatFileID(fileIDBlob)
		h.Source = SourceTrigram
		h.Score = similarity
		h.ModifiedUTC, _ = time.Parse(time.RFC3339Nano, modifiedUTC)
		if contentSize.Valid {
			v := contentSize.Int64
			h.ContentSize = &v
		}
		h.ExactTitle = strings.EqualFold(h.Title, plan.RawQuery)
		h.Snippet, h.Highlight = manualSnippet(h.Title, plan.RawQuery)
		h.HasHighlight = h.Highlight != h.Snippet

		hits = append(hits, h)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].FileID < hits[j].FileID
	})
	return hits, rows.Err()
}

func trigramSet(trigrams []string) map[string]struct{} {
	set := make(map[string]struct{}, len(trigrams))
	for _, t := range trigrams {
		set[t] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// manualSnippet builds a bracketed highlight span by hand for trigram hits,
// since there is no FTS snippet()/highlight() support over a raw string.
func manualSnippet(title, rawQuery string) (snippet, highlight string) {
	if title == "" {
		return "", ""
	}
	idx := strings.Index(strings.ToLower(title), strings.ToLower(rawQuery))
	if rawQuery == "" || idx < 0 {
		return title, title
	}
	end := idx + len(rawQuery)
	highlighted := title[:idx] + "[" + title[idx:end] + "]" + title[end:]
	return title, highlighted
}

// queryTrigramTokens is a small convenience reused by the spell-checker to
// build a query-side trigram set from normalized text without re-deriving
// the analyzer's Trigrams helper signature at each call site.
func queryTrigramTokens(a *analyzer.Analyzer, text, profile string) ([]string, error) {
	normalized, err := a.Normalize(text, profile)
	if err != nil {
		return nil, err
	}
	return analyzer.Trigrams(normalized, 0), nil
}
