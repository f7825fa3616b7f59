package query

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"docsearch/internal/analyzer"
	"docsearch/internal/config"
	"docsearch/internal/fileagg"
	"docsearch/internal/projection"
	"docsearch/internal/schema"
	"docsearch/internal/waj"
)

func testDB(t *testing.T) (*sql.DB, *analyzer.Analyzer) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, schema.Ensure(db))
	t.Cleanup(func() { db.Close() })

	a, err := analyzer.New(config.DefaultConfig().Analyzer)
	require.NoError(t, err)
	return db, a
}

func indexFile(t *testing.T, db *sql.DB, a *analyzer.Analyzer, title, author, mime, metadataText, metadataJSON string, content []byte) fileagg.FileID {
	t.Helper()
	cap := schema.Snapshot(db)
	w := projection.New(a, waj.New(db), cap, config.BusyRetryConfig{MaxAttempts: 3, BackoffMS: []int{1, 2}})

	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	scope, err := w.Begin(context.Background(), conn)
	require.NoError(t, err)

	f := &fileagg.MemoryFile{
		TitleValue:    title,
		AuthorValue:   author,
		MimeValue:     mime,
		MetadataTextV: metadataText,
		MetadataJSONV: metadataJSON,
		Content:       content,
		CreatedAt:     time.Now().UTC(),
		ModifiedAt:    time.Now().UTC(),
	}
	_, err = w.Upsert(context.Background(), scope, f, nil, nil, f.ContentHash(), "token-"+title)
	require.NoError(t, err)
	require.NoError(t, scope.Tx.Commit())
	return f.ID()
}

func TestPlannerLexicalSearchReturnsLexicalHits(t *testing.T) {
	db, a := testDB(t)
	indexFile(t, db, a, "Quarterly Financial Report", "Alice", "application/pdf", "finance quarterly", `{"pages":12}`, []byte("x"))
	indexFile(t, db, a, "Annual Report Summary", "Bob", "application/pdf", "summary", `{"pages":3}`, []byte("yy"))

	planner := NewPlanner(db, a, config.MergeConfig{Strategy: config.MergeMedianScaled, FuzzyScaleFallback: 0.6}, "")

	res, err := planner.Search(context.Background(), "report", Filter{}, Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	for _, h := range res.Hits {
		require.Equal(t, SourceLexical, h.Source)
	}
}

func TestPlannerTrigramFallbackFindsNearMiss(t *testing.T) {
	db, a := testDB(t)
	indexFile(t, db, a, "Quarterly Financial Report", "Alice", "text/plain", "", "", nil)

	planner := NewPlanner(db, a, config.MergeConfig{Strategy: config.MergeMedianScaled, FuzzyScaleFallback: 0.6}, "")

	res, err := planner.Search(context.Background(), "financal report", Filter{}, Page{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
}

func TestSearchWithScoresIsLexicalOnly(t *testing.T) {
	db, a := testDB(t)
	indexFile(t, db, a, "Quarterly Financial Report", "Alice", "application/pdf", "finance quarterly", `{"pages":12}`, []byte("x"))
	indexFile(t, db, a, "Quarterly Financial Repот", "Bob", "text/plain", "", "", nil) // near-miss, trigram only

	planner := NewPlanner(db, a, config.MergeConfig{Strategy: config.MergeMedianScaled, FuzzyScaleFallback: 0.6}, "")

	res, err := planner.SearchWithScores(context.Background(), "financial report", Filter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	require.Equal(t, SourceLexical, res.Hits[0].Source)
}

func TestSearchFuzzyWithScoresIsTrigramOnly(t *testing.T) {
	db, a := testDB(t)
	indexFile(t, db, a, "Quarterly Financial Report", "Alice", "text/plain", "", "", nil)

	planner := NewPlanner(db, a, config.MergeConfig{Strategy: config.MergeMedianScaled, FuzzyScaleFallback: 0.6}, "")

	res, err := planner.SearchFuzzyWithScores(context.Background(), "financal report", Filter{}, 0, 10)
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	for _, h := range res.Hits {
		require.Equal(t, SourceTrigram, h.Source)
	}
}

func TestSearchWithScoresPagesIndependently(t *testing.T) {
	db, a := testDB(t)
	indexFile(t, db, a, "Report One", "Alice", "application/pdf", "", "", nil)
	indexFile(t, db, a, "Report Two", "Bob", "application/pdf", "", "", nil)
	indexFile(t, db, a, "Report Three", "Carol", "application/pdf", "", "", nil)

	planner := NewPlanner(db, a, config.MergeConfig{Strategy: config.MergeLexicalOnly}, "")

	first, err := planner.SearchWithScores(context.Background(), "report", Filter{}, 0, 2)
	require.NoError(t, err)
	require.Len(t, first.Hits, 2)
	require.Equal(t, 3, first.Total)

	second, err := planner.SearchWithScores(context.Background(), "report", Filter{}, 2, 2)
	require.NoError(t, err)
	require.Len(t, second.Hits, 1)
	require.Equal(t, 3, second.Total)
}

func TestSelectSnippetPrefersMatchingColumnsOwnHighlight(t *testing.T) {
	h := Hit{Title: "", Author: "Jane Smith", MetadataText: "", Mime: "text/plain", MetadataJSON: ""}

	snippet, highlight := selectSnippet(h, snippetCandidates{
		author: fieldCandidate{snippet: "[Jane] Smith", highlight: "[Jane] Smith"},
	})
	require.Equal(t, "[Jane] Smith", snippet)
	require.Equal(t, "[Jane] Smith", highlight)

	titled := Hit{Title: "Untitled"}
	snippet, highlight = selectSnippet(titled, snippetCandidates{})
	require.Equal(t, "Untitled", snippet)
	require.Empty(t, highlight)
}

func TestPlannerFilterByMimePrefix(t *testing.T) {
	db, a := testDB(t)
	indexFile(t, db, a, "Report One", "Alice", "application/pdf", "", "", nil)
	indexFile(t, db, a, "Report Two", "Bob", "text/plain", "", "", nil)

	planner := NewPlanner(db, a, config.MergeConfig{Strategy: config.MergeLexicalOnly}, "")
	res, err := planner.Search(context.Background(), "report", Filter{MimePrefix: "application/"}, Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	require.Equal(t, "application/pdf", res.Hits[0].Mime)
}

func TestMergeStrategies(t *testing.T) {
	lexical := []Hit{{FileID: "a", Score: 0.8, HasHighlight: true}, {FileID: "b", Score: 0.4}}
	fuzzy := []Hit{{FileID: "b", Score: 0.9}, {FileID: "c", Score: 0.5}}

	t.Run("median scaled", func(t *testing.T) {
		merged := MedianScaledMerge{FuzzyScaleFallback: 0.6}.Merge(lexical, fuzzy)
		require.Len(t, merged, 3)
	})

	t.Run("weighted average blends overlapping ids", func(t *testing.T) {
		merged := WeightedAverageMerge{Alpha: 0.85}.Merge(lexical, fuzzy)
		var b Hit
		for _, h := range merged {
			if h.FileID == "b" {
				b = h
			}
		}
		require.InDelta(t, 0.85*0.4+0.15*0.9, b.Score, 0.0001)
	})

	t.Run("lexical only drops fuzzy-only ids", func(t *testing.T) {
		merged := LexicalOnlyMerge{}.Merge(lexical, fuzzy)
		require.Len(t, merged, 2)
		for _, h := range merged {
			require.NotEqual(t, "c", h.FileID)
		}
	})
}

func TestFacetServiceSizeAndMime(t *testing.T) {
	db, a := testDB(t)
	indexFile(t, db, a, "Small", "Alice", "application/pdf", "", "", make([]byte, 1024))
	indexFile(t, db, a, "Big", "Bob", "text/plain", "", "", make([]byte, 20*1024*1024))

	facets := NewFacetService(db)
	mimeFacets, err := facets.MimeFacet(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, mimeFacets, 2)

	sizes, err := facets.SizeFacet(context.Background(), Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, sizes.Under10MB)
	require.Equal(t, 1, sizes.Under100MB)
}

func TestSuggestionServiceHarvestAndSuggest(t *testing.T) {
	db, _ := testDB(t)
	s := NewSuggestionService(db)

	require.NoError(t, s.Harvest(context.Background(), nil, "Quarterly", SourceTitle, "en"))
	require.NoError(t, s.Harvest(context.Background(), nil, "Quarterly", SourceAuthor, "en"))
	require.NoError(t, s.Harvest(context.Background(), nil, "Quantum", SourceTitle, "en"))

	results, err := s.Suggest(context.Background(), "Qu", "en", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Quarterly", results[0].Term)
	require.Equal(t, float64(8), results[0].Weight)
}

func TestSpellCheckerSuggestsNearMiss(t *testing.T) {
	db, a := testDB(t)
	s := NewSuggestionService(db)
	require.NoError(t, s.Harvest(context.Background(), nil, "quarterly", SourceTitle, "en"))
	require.NoError(t, s.Harvest(context.Background(), nil, "annual", SourceTitle, "en"))

	checker := NewSpellChecker(db, a)
	results, err := checker.Suggest(context.Background(), "quaterly", "en", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "quarterly", results[0].Term)
}

func TestSearchHistoryRecordsAndBumpsExecutions(t *testing.T) {
	db, _ := testDB(t)
	h := NewSearchHistoryService(db)
	require.NoError(t, h.Record(context.Background(), "report", `"report"`, 3))
	require.NoError(t, h.Record(context.Background(), "report", `"report"`, 5))

	entries, err := h.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 2, entries[0].Executions)
	require.Equal(t, 5, *entries[0].LastTotalHits)
}

func TestSearchFavoritesSaveListDelete(t *testing.T) {
	db, _ := testDB(t)
	f := NewSearchFavoritesService(db)

	id1, err := f.Save(context.Background(), "Quarterly", "quarterly", `"quarterly"`, false)
	require.NoError(t, err)
	_, err = f.Save(context.Background(), "Fuzzy one", "quaterly", `"quaterly"`, true)
	require.NoError(t, err)

	list, err := f.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 0, list[0].Position)
	require.Equal(t, 1, list[1].Position)

	require.NoError(t, f.Delete(context.Background(), id1))
	list, err = f.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 0, list[0].Position)
}
