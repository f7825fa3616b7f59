package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"docsearch/internal/config"
)

func testAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(config.DefaultConfig().Analyzer)
	require.NoError(t, err)
	return a
}

func TestNewRejectsUnknownDefaultProfile(t *testing.T) {
	_, err := New(config.AnalyzerConfig{DefaultProfile: "missing"})
	require.Error(t, err)
}

func TestNormalizeIdempotent(t *testing.T) {
	a := testAnalyzer(t)
	once, err := a.Normalize("Straße Ø Đỗ", "")
	require.NoError(t, err)
	twice, err := a.Normalize(once, "")
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestNormalizeAppliesSpecialFolds(t *testing.T) {
	a := testAnalyzer(t)
	out, err := a.Normalize("STRASSE", "")
	require.NoError(t, err)
	require.Equal(t, "strasse", out)

	out, err = a.Normalize("Straße", "")
	require.NoError(t, err)
	require.Equal(t, "strasse", out)
}

func TestTokenizeDropsStopwordsAndSplitsOnPunctuation(t *testing.T) {
	a := testAnalyzer(t)
	tokens, err := a.Tokenize("The Quarterly Report, from the board.", "")
	require.NoError(t, err)
	require.Equal(t, []string{"quarterly", "report", "board"}, tokens)
}

func TestTokenizeUnknownProfile(t *testing.T) {
	a := testAnalyzer(t)
	_, err := a.Tokenize("text", "nonexistent")
	require.Error(t, err)
}

func TestTokenizeSplitsFilenameRuns(t *testing.T) {
	cfg := config.DefaultConfig().Analyzer
	cfg.Profiles["default"] = config.AnalyzerProfile{
		SplitFilenames: true,
		Stopwords:      nil,
	}
	a, err := New(cfg)
	require.NoError(t, err)

	tokens, err := a.Tokenize("annual-report_final.v2", "")
	require.NoError(t, err)
	require.Equal(t, []string{"annual", "report", "final", "v"}, tokens)
}

func TestTokenizeKeepsNumbersWhenConfigured(t *testing.T) {
	cfg := config.DefaultConfig().Analyzer
	cfg.Profiles["default"] = config.AnalyzerProfile{KeepNumbers: true}
	a, err := New(cfg)
	require.NoError(t, err)

	tokens, err := a.Tokenize("Q3 2024", "")
	require.NoError(t, err)
	require.Equal(t, []string{"q3", "2024"}, tokens)
}

func TestVersionHashChangesWithStopwords(t *testing.T) {
	base := config.DefaultConfig().Analyzer
	h1 := VersionHash(base)

	changed := config.DefaultConfig().Analyzer
	p := changed.Profiles["default"]
	p.Stopwords = append(p.Stopwords, "extra")
	changed.Profiles["default"] = p
	h2 := VersionHash(changed)

	require.NotEqual(t, h1, h2)
}

func TestVersionHashStableRegardlessOfStopwordOrder(t *testing.T) {
	a := config.DefaultConfig().Analyzer
	b := config.DefaultConfig().Analyzer
	pb := b.Profiles["default"]
	reversed := make([]string, len(pb.Stopwords))
	for i, w := range pb.Stopwords {
		reversed[len(pb.Stopwords)-1-i] = w
	}
	pb.Stopwords = reversed
	b.Profiles["default"] = pb

	require.Equal(t, VersionHash(a), VersionHash(b))
}
