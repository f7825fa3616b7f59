package signature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"docsearch/internal/analyzer"
	"docsearch/internal/config"
	"docsearch/internal/fileagg"
)

func testCalculator(t *testing.T) *Calculator {
	t.Helper()
	cfg := config.DefaultConfig().Analyzer
	a, err := analyzer.New(cfg)
	require.NoError(t, err)
	return NewCalculator(a, cfg)
}

func TestComputeIsDeterministic(t *testing.T) {
	c := testCalculator(t)
	f := &fileagg.MemoryFile{TitleValue: "Quarterly Report", AuthorValue: "Jane", MimeValue: "text/plain"}

	s1, err := c.Compute(context.Background(), f)
	require.NoError(t, err)
	s2, err := c.Compute(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, s1, s2)
}

func TestComputeNormalizedTitle(t *testing.T) {
	c := testCalculator(t)
	f := &fileagg.MemoryFile{TitleValue: "Annual Report"}

	s, err := c.Compute(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, "annual report", s.NormalizedTitle)
}

func TestComputeEmptyTokenHashWhenNoTokens(t *testing.T) {
	c := testCalculator(t)
	f := &fileagg.MemoryFile{}

	s, err := c.Compute(context.Background(), f)
	require.NoError(t, err)
	require.Empty(t, s.TokenHash)
}

func TestComputeTokenHashChangesWithTitle(t *testing.T) {
	c := testCalculator(t)
	a := &fileagg.MemoryFile{TitleValue: "Quarterly Report"}
	b := &fileagg.MemoryFile{TitleValue: "Annual Report"}

	sa, err := c.Compute(context.Background(), a)
	require.NoError(t, err)
	sb, err := c.Compute(context.Background(), b)
	require.NoError(t, err)

	require.NotEqual(t, sa.TokenHash, sb.TokenHash)
	require.Equal(t, sa.AnalyzerVersion, sb.AnalyzerVersion)
}

func TestAnalyzerVersionChangesSignature(t *testing.T) {
	cfg1 := config.DefaultConfig().Analyzer
	a1, err := analyzer.New(cfg1)
	require.NoError(t, err)
	c1 := NewCalculator(a1, cfg1)

	cfg2 := config.DefaultConfig().Analyzer
	p := cfg2.Profiles["default"]
	p.EnableStemming = true
	cfg2.Profiles["default"] = p
	a2, err := analyzer.New(cfg2)
	require.NoError(t, err)
	c2 := NewCalculator(a2, cfg2)

	require.NotEqual(t, c1.AnalyzerVersion(), c2.AnalyzerVersion())
}
