package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Hit is one ranked search result, regardless of which execution path
// produced it.
type Hit struct {
	FileID       string
	Score        float64 // normalized 0..1, higher is better
	Source       Source
	Title        string
	Author       string
	Mime         string
	MetadataText string
	MetadataJSON string
	ModifiedUTC  time.Time
	ContentSize  *int64

	Snippet      string
	Highlight    string
	ExactTitle   bool
	HasHighlight bool
}

const (
	weightTitle        = 4.0
	weightMime         = 0.1
	weightAuthor       = 2.0
	weightMetadataText = 0.8
	weightMetadataJSON = 0.2
)

// runLexical executes the MATCH query against search_document_fts, joined
// back to search_document for the fields bm25() weighting and ordering
// need. Results are capped at candidateCap before paging is applied.
func runLexical(ctx context.Context, db *sql.DB, plan QueryPlan) ([]Hit, error) {
	if plan.LexicalMatch == "" {
		return nil, nil
	}

	where, args := lexicalWhere(plan)

	query := fmt.Sprintf(`
		SELECT sd.file_id, sd.title, sd.author, sd.mime, sd.metadata_text, sd.metadata_json,
		       sd.modified_utc, sd.content_size_bytes,
		       bm25(search_document_fts, %f, %f, %f, %f, %f) AS rank,
		       snippet(search_document_fts, 0, '[', ']', '...', 10) AS title_snippet,
		       snippet(search_document_fts, 2, '[', ']', '...', 10) AS author_snippet,
		       snippet(search_document_fts, 3, '[', ']', '...', 10) AS metadata_text_snippet,
		       snippet(search_document_fts, 1, '[', ']', '...', 10) AS mime_snippet,
		       snippet(search_document_fts, 4, '[', ']', '...', 10) AS metadata_json_snippet,
		       highlight(search_document_fts, 0, '[', ']') AS title_highlight,
		       highlight(search_document_fts, 2, '[', ']') AS author_highlight,
		       highlight(search_document_fts, 3, '[', ']') AS metadata_text_highlight,
		       highlight(search_document_fts, 1, '[', ']') AS mime_highlight,
		       highlight(search_document_fts, 4, '[', ']') AS metadata_json_highlight
		FROM search_document_fts
		JOIN file_search_map m ON m.rowid_fts = search_document_fts.rowid
		JOIN search_document sd ON sd.file_id = m.file_id
		WHERE search_document_fts MATCH ?
		%s
		ORDER BY rank ASC,
		         sd.modified_utc DESC,
		         (LOWER(sd.title) = LOWER(?)) DESC,
		         sd.title COLLATE NOCASE ASC
		LIMIT ?
	`, weightTitle, weightMime, weightAuthor, weightMetadataText, weightMetadataJSON, where)

	queryArgs := append([]interface{}{plan.LexicalMatch}, args...)
	queryArgs = append(queryArgs, plan.RawQuery, candidateCap)

	rows, err := db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("lexical match query: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var fileIDBlob []byte
		var modifiedUTC string
		var rawRank float64
		var titleSnippet, authorSnippet, metadataTextSnippet, mimeSnippet, metadataJSONSnippet sql.NullString
		var titleHighlight, authorHighlight, metadataTextHighlight, mimeHighlight, metadataJSONHighlight sql.NullString
		var contentSize sql.NullInt64

		if err := rows.Scan(&fileIDBlob, &h.Title, &h.Author, &h.Mime, &h.MetadataText, &h.MetadataJSON,
			&modifiedUTC, &contentSize, &rawRank,
			&titleSnippet, &authorSnippet, &metadataTextSnippet, &mimeSnippet, &metadataJSONSnippet,
			&titleHighlight, &authorHighlight, &metadataTextHighlight, &mimeHighlight, &metadataJSONHighlight); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}

		h.FileID = formatFileID(fileIDBlob)
		h.Source = SourceLexical
		h.Score = normalizeBM25(rawRank)
		h.ModifiedUTC, _ = time.Parse(time.RFC3339Nano, modifiedUTC)
		if contentSize.Valid {
			v := contentSize.Int64
			h.ContentSize = &v
		}
		h.ExactTitle = strings.EqualFold(h.Title, plan.RawQuery)

		snippet, highlight := selectSnippet(h, snippetCandidates{
			title:        fieldCandidate{titleSnippet.String, titleHighlight.String},
			author:       fieldCandidate{authorSnippet.String, authorHighlight.String},
			metadataText: fieldCandidate{metadataTextSnippet.String, metadataTextHighlight.String},
			mime:         fieldCandidate{mimeSnippet.String, mimeHighlight.String},
			metadataJSON: fieldCandidate{metadataJSONSnippet.String, metadataJSONHighlight.String},
		})
		h.Snippet = snippet
		h.Highlight = highlight
		h.HasHighlight = strings.Contains(highlight, "[") && strings.Contains(highlight, "]")

		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func lexicalWhere(plan QueryPlan) (string, []interface{}) {
	if len(plan.WhereClauses) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, c := range plan.WhereClauses {
		b.WriteString(" AND ")
		b.WriteString(c)
	}
	return b.String(), plan.Args
}

// normalizeBM25 maps FTS5's raw bm25() score (lower = better, unbounded)
// into a 0..1 space where higher is better.
func normalizeBM25(raw float64) float64 {
	if raw < 0 {
		raw = 0
	}
	return 1 / (1 + raw)
}

// fieldCandidate pairs one FTS column's snippet() output with its
// highlight() output; both come from the same MATCH, so a non-empty
// snippet and its highlight always describe the same matched column.
type fieldCandidate struct {
	snippet   string
	highlight string
}

// snippetCandidates bundles every FTS column's snippet/highlight pair in
// the order selectSnippet must prefer them.
type snippetCandidates struct {
	title        fieldCandidate
	author       fieldCandidate
	metadataText fieldCandidate
	mime         fieldCandidate
	metadataJSON fieldCandidate
}

// selectSnippet picks the first non-empty field among title, author,
// metadata-text, mime, metadata-json, preferring each candidate's own
// FTS snippet()/highlight() output and falling back to its stored column
// value. The returned highlight always corresponds to whichever
// candidate actually supplied the snippet, never to an unrelated column.
func selectSnippet(h Hit, c snippetCandidates) (snippet, highlight string) {
	candidates := []struct {
		snippet   string
		highlight string
		stored    string
	}{
		{c.title.snippet, c.title.highlight, h.Title},
		{c.author.snippet, c.author.highlight, h.Author},
		{c.metadataText.snippet, c.metadataText.highlight, h.MetadataText},
		{c.mime.snippet, c.mime.highlight, h.Mime},
		{c.metadataJSON.snippet, c.metadataJSON.highlight, summarizeMetadataJSON(h.MetadataJSON)},
	}
	for _, cand := range candidates {
		if cand.snippet != "" {
			return cand.snippet, cand.highlight
		}
		if cand.stored != "" {
			return cand.stored, cand.highlight
		}
	}
	return "", ""
}

// summarizeMetadataJSON trims a raw metadata_json blob down to a short
// human-readable summary, used only when neither snippet() nor the raw
// value's own highlight() found a match in it.
func summarizeMetadataJSON(raw string) string {
	if raw == "" {
		return ""
	}
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.Trim(trimmed, "{}[]\"")
	if len(trimmed) > 120 {
		trimmed = trimmed[:120] + "..."
	}
	return trimmed
}

// formatFileID renders a 16-byte BLOB file_id as its canonical UUID string.
func formatFileID(b []byte) string {
	if len(b) != 16 {
		return fmt.Sprintf("%x", b)
	}
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
