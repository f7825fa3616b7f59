package query

import (
	"context"
	"database/sql"
	"fmt"

	"docsearch/internal/analyzer"
	"docsearch/internal/config"
	"docsearch/internal/logging"
)

// Planner turns raw query text into a QueryPlan, runs the lexical and
// trigram execution paths, and merges them via the configured
// MergeStrategy.
type Planner struct {
	db       *sql.DB
	analyzer *analyzer.Analyzer
	merge    MergeStrategy
	profile  string
}

// NewPlanner builds a Planner bound to a fixed merge strategy, resolved
// once from configuration rather than guessed per query.
func NewPlanner(db *sql.DB, a *analyzer.Analyzer, cfg config.MergeConfig, profile string) *Planner {
	return &Planner{db: db, analyzer: a, merge: NewMergeStrategy(cfg), profile: profile}
}

// Result is the outcome of running a search: the merged, paged hits plus
// the total hit count across both execution paths.
type Result struct {
	Hits  []Hit
	Total int
}

// Search plans and executes a hybrid search, merging lexical and trigram
// results and returning the requested page. This is the convenience path
// most callers want; SearchWithScores and SearchFuzzyWithScores expose
// the two execution paths independently for callers that need their own
// per-path paging and scores.
func (p *Planner) Search(ctx context.Context, rawQuery string, filter Filter, requested Page) (Result, error) {
	plan, err := Plan(p.analyzer, rawQuery, p.profile, filter, requested)
	if err != nil {
		return Result{}, fmt.Errorf("build query plan: %w", err)
	}

	lexical, err := runLexical(ctx, p.db, plan)
	if err != nil {
		return Result{}, err
	}

	var fuzzy []Hit
	if plan.NeedsTrigram {
		fuzzy, err = runTrigram(ctx, p.db, plan)
		if err != nil {
			return Result{}, err
		}
	}

	logging.Get(logging.CategoryQuery).Debug("search %q: %d lexical, %d fuzzy hits", rawQuery, len(lexical), len(fuzzy))

	merged := p.merge.Merge(lexical, fuzzy)
	total := len(lexical)
	if len(fuzzy) > total {
		total = len(fuzzy)
	}

	result := pageResult(merged, plan.Page)
	result.Total = total
	return result, nil
}

// SearchWithScores runs only the lexical BM25 path, independent of the
// trigram fuzzy fallback, and returns its own skip/take page of scored
// hits plus the total lexical match count.
func (p *Planner) SearchWithScores(ctx context.Context, rawQuery string, filter Filter, skip, take int) (Result, error) {
	plan, err := Plan(p.analyzer, rawQuery, p.profile, filter, Page{Limit: take, Offset: skip})
	if err != nil {
		return Result{}, fmt.Errorf("build query plan: %w", err)
	}

	lexical, err := runLexical(ctx, p.db, plan)
	if err != nil {
		return Result{}, err
	}

	return pageResult(lexical, plan.Page), nil
}

// SearchFuzzyWithScores runs only the trigram fuzzy path, independent of
// whether the lexical MATCH would itself find anything, and returns its
// own skip/take page of scored hits plus the total fuzzy match count.
func (p *Planner) SearchFuzzyWithScores(ctx context.Context, rawQuery string, filter Filter, skip, take int) (Result, error) {
	plan, err := Plan(p.analyzer, rawQuery, p.profile, filter, Page{Limit: take, Offset: skip})
	if err != nil {
		return Result{}, fmt.Errorf("build query plan: %w", err)
	}
	plan.NeedsTrigram = true // caller explicitly wants the fuzzy path run

	fuzzy, err := runTrigram(ctx, p.db, plan)
	if err != nil {
		return Result{}, err
	}

	return pageResult(fuzzy, plan.Page), nil
}

// pageResult slices hits to the window p describes, reporting the
// pre-paging count as Total.
func pageResult(hits []Hit, p Page) Result {
	start := p.Offset
	if start > len(hits) {
		start = len(hits)
	}
	end := start + p.Limit
	if end > len(hits) {
		end = len(hits)
	}
	return Result{Hits: hits[start:end], Total: len(hits)}
}

// Count returns max(lexical_count, fuzzy_count) for plan without paging.
func (p *Planner) Count(ctx context.Context, rawQuery string, filter Filter) (int, error) {
	plan, err := Plan(p.analyzer, rawQuery, p.profile, filter, Page{Limit: candidateCap})
	if err != nil {
		return 0, err
	}

	lexical, err := runLexical(ctx, p.db, plan)
	if err != nil {
		return 0, err
	}
	fuzzy, err := runTrigram(ctx, p.db, plan)
	if err != nil {
		return 0, err
	}

	count := len(lexical)
	if len(fuzzy) > count {
		count = len(fuzzy)
	}
	return count, nil
}
