package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/hbollon/go-edlib"

	"docsearch/internal/analyzer"
)

// SpellSuggestion is one scored spelling correction candidate.
type SpellSuggestion struct {
	Term  string
	Score float64
}

// dictionaryCache holds, per language, the dictionary terms and their
// precomputed trigram sets, keyed by a content hash of the dictionary so a
// harvester rebuilding the term list invalidates the cache automatically.
type dictionaryCache struct {
	mu      sync.RWMutex
	entries map[string]cachedDictionary
}

type cachedDictionary struct {
	contentHash uint64
	terms       []string
	trigrams    []map[string]struct{}
}

func newDictionaryCache() *dictionaryCache {
	return &dictionaryCache{entries: make(map[string]cachedDictionary)}
}

// SpellChecker ranks near-miss corrections against a language-scoped
// dictionary: trigram Jaccard similarity as the primary signal, with a
// secondary Jaro-Winkler pass over the dictionary's closest
// trigram neighbors when the trigram pass alone yields too few candidates
// (thin recall on very short or heavily misspelled queries).
type SpellChecker struct {
	db       *sql.DB
	analyzer *analyzer.Analyzer
	cache    *dictionaryCache

	// Threshold is the minimum score a candidate must clear to be returned
	// (trigram Jaccard, or Jaro-Winkler in the secondary pass).
	Threshold float64
	// MinCandidatesBeforeSecondaryPass triggers the edlib fallback when the
	// trigram pass returns fewer than this many candidates.
	MinCandidatesBeforeSecondaryPass int
}

// NewSpellChecker builds a SpellChecker with the documented default
// threshold and fallback trigger.
func NewSpellChecker(db *sql.DB, a *analyzer.Analyzer) *SpellChecker {
	return &SpellChecker{
		db:                               db,
		analyzer:                        a,
		cache:                            newDictionaryCache(),
		Threshold:                        0.3,
		MinCandidatesBeforeSecondaryPass: 3,
	}
}

// Suggest returns spelling corrections for term, ordered score desc then
// term ordinal (alphabetical, as a deterministic tiebreak).
func (c *SpellChecker) Suggest(ctx context.Context, term, lang string, limit int) ([]SpellSuggestion, error) {
	if limit <= 0 {
		limit = 5
	}

	dict, err := c.dictionaryFor(ctx, lang)
	if err != nil {
		return nil, err
	}
	if len(dict.terms) == 0 {
		return nil, nil
	}

	queryTrigrams, err := queryTrigramTokens(c.analyzer, term, "")
	if err != nil {
		return nil, err
	}
	querySet := trigramSet(queryTrigrams)

	var candidates []SpellSuggestion
	for i, dictTerm := range dict.terms {
		score := jaccard(querySet, dict.trigrams[i])
		if score >= c.Threshold {
			candidates = append(candidates, SpellSuggestion{Term: dictTerm, Score: score})
		}
	}

	if len(candidates) < c.MinCandidatesBeforeSecondaryPass {
		candidates = append(candidates, c.secondaryPass(term, querySet, dict, candidates)...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Term < candidates[j].Term
	})
	candidates = dedupeSuggestions(candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// secondaryPass scores every dictionary term that shares at least one
// trigram with the query by Jaro-Winkler similarity via go-edlib, used only
// when the trigram pass alone is too thin to be useful (short queries where
// few 3-grams survive normalization).
func (c *SpellChecker) secondaryPass(term string, querySet map[string]struct{}, dict cachedDictionary, existing []SpellSuggestion) []SpellSuggestion {
	already := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		already[e.Term] = struct{}{}
	}

	var out []SpellSuggestion
	for i, dictTerm := range dict.terms {
		if _, ok := already[dictTerm]; ok {
			continue
		}
		if jaccard(querySet, dict.trigrams[i]) == 0 {
			continue
		}
		score, err := edlib.StringsSimilarity(term, dictTerm, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(score) >= c.Threshold {
			out = append(out, SpellSuggestion{Term: dictTerm, Score: float64(score)})
		}
	}
	return out
}

func dedupeSuggestions(in []SpellSuggestion) []SpellSuggestion {
	seen := make(map[string]struct{}, len(in))
	out := make([]SpellSuggestion, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s.Term]; ok {
			continue
		}
		seen[s.Term] = struct{}{}
		out = append(out, s)
	}
	return out
}

// dictionaryFor loads lang's dictionary (distinct suggestion terms),
// rebuilding the cached trigram sets only when the dictionary's content
// hash has changed since the last call.
func (c *SpellChecker) dictionaryFor(ctx context.Context, lang string) (cachedDictionary, error) {
	terms, err := c.loadDictionaryTerms(ctx, lang)
	if err != nil {
		return cachedDictionary{}, err
	}
	hash := hashDictionary(terms)

	c.cache.mu.RLock()
	cached, ok := c.cache.entries[lang]
	c.cache.mu.RUnlock()
	if ok && cached.contentHash == hash {
		return cached, nil
	}

	trigramSets := make([]map[string]struct{}, len(terms))
	for i, t := range terms {
		tg, err := queryTrigramTokens(c.analyzer, t, "")
		if err != nil {
			return cachedDictionary{}, err
		}
		trigramSets[i] = trigramSet(tg)
	}

	built := cachedDictionary{contentHash: hash, terms: terms, trigrams: trigramSets}
	c.cache.mu.Lock()
	c.cache.entries[lang] = built
	c.cache.mu.Unlock()
	return built, nil
}

func (c *SpellChecker) loadDictionaryTerms(ctx context.Context, lang string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT term FROM suggestions WHERE lang = ? ORDER BY term`, lang)
	if err != nil {
		return nil, fmt.Errorf("load dictionary terms: %w", err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

func hashDictionary(terms []string) uint64 {
	h := xxhash.New()
	for _, t := range terms {
		_, _ = h.WriteString(t)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
