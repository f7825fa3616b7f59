package query

import (
	"sort"

	"docsearch/internal/config"
)

// MergeStrategy reconciles pre-sorted lexical and fuzzy hit lists into one
// ranked list. The three implementations below resolve the hybrid-merge
// weighting left open for deployment configuration: weighted-average blends
// both scores with a fixed alpha, median-scaled (the default) scales fuzzy
// scores by the median of the lexical scores it is competing against, and
// lexical-only drops the fuzzy pass entirely.
type MergeStrategy interface {
	Merge(lexical, fuzzy []Hit) []Hit
}

// NewMergeStrategy builds the configured strategy.
func NewMergeStrategy(cfg config.MergeConfig) MergeStrategy {
	switch cfg.Strategy {
	case config.MergeWeightedAverage:
		alpha := cfg.WeightedAverageAlpha
		if alpha <= 0 {
			alpha = 0.85
		}
		return WeightedAverageMerge{Alpha: alpha}
	case config.MergeLexicalOnly:
		return LexicalOnlyMerge{}
	default:
		fallback := cfg.FuzzyScaleFallback
		if fallback <= 0 {
			fallback = 0.6
		}
		return MedianScaledMerge{FuzzyScaleFallback: fallback}
	}
}

// seedFromLexical builds the file-id-keyed dictionary every strategy starts
// from: one entry per lexical hit, score already normalized.
func seedFromLexical(lexical []Hit) map[string]Hit {
	byID := make(map[string]Hit, len(lexical))
	for _, h := range lexical {
		byID[h.FileID] = h
	}
	return byID
}

// mergeFuzzyInto folds fuzzy hits (already scaled by the caller) into an
// existing lexical-seeded dictionary: keep the lexical snippet/title when
// it already carries a highlight, take the max score, OR the exact-title
// flag.
func mergeFuzzyInto(byID map[string]Hit, fuzzy []Hit, scale func(score float64) float64) {
	for _, h := range fuzzy {
		scaled := h
		scaled.Score = scale(h.Score)

		existing, ok := byID[h.FileID]
		if !ok {
			byID[h.FileID] = scaled
			continue
		}

		merged := existing
		if scaled.Score > merged.Score {
			merged.Score = scaled.Score
		}
		merged.ExactTitle = merged.ExactTitle || scaled.ExactTitle
		if !merged.HasHighlight && scaled.HasHighlight {
			merged.Snippet = scaled.Snippet
			merged.Highlight = scaled.Highlight
			merged.HasHighlight = true
		}
		byID[h.FileID] = merged
	}
}

func orderAndTruncate(byID map[string]Hit, topK int) []Hit {
	out := make([]Hit, 0, len(byID))
	for _, h := range byID {
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.HasHighlight != b.HasHighlight {
			return a.HasHighlight
		}
		if !a.ModifiedUTC.Equal(b.ModifiedUTC) {
			return a.ModifiedUTC.After(b.ModifiedUTC)
		}
		if a.ExactTitle != b.ExactTitle {
			return a.ExactTitle
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.FileID < b.FileID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// WeightedAverageMerge blends lexical and fuzzy scores for ids present in
// both lists at a fixed alpha favoring the lexical score; fuzzy-only ids
// keep their raw (unscaled) fuzzy score.
type WeightedAverageMerge struct {
	Alpha float64
}

func (m WeightedAverageMerge) Merge(lexical, fuzzy []Hit) []Hit {
	byID := seedFromLexical(lexical)
	for _, h := range fuzzy {
		if existing, ok := byID[h.FileID]; ok {
			blended := existing
			blended.Score = m.Alpha*existing.Score + (1-m.Alpha)*h.Score
			blended.ExactTitle = existing.ExactTitle || h.ExactTitle
			byID[h.FileID] = blended
			continue
		}
		byID[h.FileID] = h
	}
	return orderAndTruncate(byID, 0)
}

// MedianScaledMerge is the default strategy: fuzzy scores are scaled by the
// median of the lexical normalized scores they are competing against,
// falling back to FuzzyScaleFallback when there are no lexical hits to take
// a median of.
type MedianScaledMerge struct {
	FuzzyScaleFallback float64
}

func (m MedianScaledMerge) Merge(lexical, fuzzy []Hit) []Hit {
	byID := seedFromLexical(lexical)

	scaleFactor := m.FuzzyScaleFallback
	if len(lexical) > 0 {
		scores := make([]float64, len(lexical))
		for i, h := range lexical {
			scores[i] = h.Score
		}
		scaleFactor = median(scores)
	}

	mergeFuzzyInto(byID, fuzzy, func(score float64) float64 { return score * scaleFactor })
	return orderAndTruncate(byID, 0)
}

// LexicalOnlyMerge discards the fuzzy pass entirely.
type LexicalOnlyMerge struct{}

func (LexicalOnlyMerge) Merge(lexical, _ []Hit) []Hit {
	byID := seedFromLexical(lexical)
	return orderAndTruncate(byID, 0)
}
