// Package query plans and executes hybrid searches against the projection:
// a lexical BM25 pass over search_document_fts, an optional trigram fuzzy
// pass over file_trgm, pluggable merge strategies reconciling the two, and
// the supporting facet/suggestion/spell-check/history services.
package query

import (
	"strings"

	"docsearch/internal/analyzer"
)

// Source identifies which execution path produced a hit.
type Source string

const (
	SourceLexical Source = "LEXICAL"
	SourceTrigram Source = "TRIGRAM"
)

// Filter narrows a search to a mime prefix, date range, or size range; all
// three are optional and are applied before lexical/trigram matching.
type Filter struct {
	MimePrefix string
	ModifiedAfter  *string // ISO-8601, inclusive
	ModifiedBefore *string // ISO-8601, exclusive
	MinSizeBytes   *int64
	MaxSizeBytes   *int64
}

// Page bounds a result window. Limit <= 0 means "use the default".
type Page struct {
	Limit  int
	Offset int
}

const defaultPageLimit = 20
const candidateCap = 500

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// QueryPlan bundles everything needed to run one search: the raw text, the
// derived MATCH expressions for each index, supplementary WHERE clauses
// contributed by Filter, and whether the trigram fallback should run at all.
type QueryPlan struct {
	RawQuery string

	LexicalMatch   string
	TrigramMatch   string
	QueryTrigrams  []string
	NeedsTrigram   bool

	WhereClauses []string
	Args         []interface{}

	Filter Filter
	Page   Page
}

// Plan builds a QueryPlan from raw query text and an analyzer profile. The
// lexical MATCH expression quotes each normalized token so that FTS5 treats
// punctuation-bearing tokens literally rather than as query syntax.
func Plan(a *analyzer.Analyzer, rawQuery, profile string, filter Filter, page Page) (QueryPlan, error) {
	normalized, err := a.Normalize(rawQuery, profile)
	if err != nil {
		return QueryPlan{}, err
	}

	tokens := strings.Fields(normalized)
	lexicalMatch := matchExpression(tokens)

	trigrams := analyzer.Trigrams(normalized, 0)
	trigramMatch := trigramMatchExpression(trigrams)

	plan := QueryPlan{
		RawQuery:      rawQuery,
		LexicalMatch:  lexicalMatch,
		TrigramMatch:  trigramMatch,
		QueryTrigrams: trigrams,
		NeedsTrigram:  lexicalMatch == "" || len(trigrams) > 0,
		Filter:        filter,
		Page:          page.normalized(),
	}

	where, args := filterClauses(filter)
	plan.WhereClauses = where
	plan.Args = args
	return plan, nil
}

func matchExpression(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func trigramMatchExpression(trigrams []string) string {
	if len(trigrams) == 0 {
		return ""
	}
	quoted := make([]string, len(trigrams))
	for i, t := range trigrams {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

func filterClauses(f Filter) ([]string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.MimePrefix != "" {
		clauses = append(clauses, "sd.mime LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(f.MimePrefix)+"%")
	}
	if f.ModifiedAfter != nil {
		clauses = append(clauses, "sd.modified_utc >= ?")
		args = append(args, *f.ModifiedAfter)
	}
	if f.ModifiedBefore != nil {
		clauses = append(clauses, "sd.modified_utc < ?")
		args = append(args, *f.ModifiedBefore)
	}
	if f.MinSizeBytes != nil {
		clauses = append(clauses, "sd.content_size_bytes >= ?")
		args = append(args, *f.MinSizeBytes)
	}
	if f.MaxSizeBytes != nil {
		clauses = append(clauses, "sd.content_size_bytes < ?")
		args = append(args, *f.MaxSizeBytes)
	}
	return clauses, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
