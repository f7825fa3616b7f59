// Package signature implements the deterministic (analyzer version,
// token hash, normalized title) triple used to detect drift between a
// file's content/analyzer configuration and its stored projection.
package signature

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"docsearch/internal/analyzer"
	"docsearch/internal/config"
	"docsearch/internal/fileagg"
)

// Signature is the (analyzer version, token hash, normalized title) triple.
// It is a pure function of (file content, analyzer configuration) and is
// never persisted standalone.
type Signature struct {
	AnalyzerVersion string
	TokenHash       string // empty when no tokens were produced
	NormalizedTitle string
}

// Calculator computes signatures for a fixed analyzer configuration.
type Calculator struct {
	analyzer        *analyzer.Analyzer
	analyzerVersion string
}

// NewCalculator builds a Calculator over the given analyzer and its backing
// configuration (used to derive the analyzer_version hash).
func NewCalculator(a *analyzer.Analyzer, cfg config.AnalyzerConfig) *Calculator {
	return &Calculator{
		analyzer:        a,
		analyzerVersion: analyzer.VersionHash(cfg),
	}
}

// Compute derives the signature of f under the calculator's analyzer
// configuration. Token hash is the SHA-256 of newline-joined
// tokens extracted from (title ∥ author ∥ mime ∥ metadata text), in that
// order; it is empty when extraction yields no tokens.
func (c *Calculator) Compute(ctx context.Context, f fileagg.File) (Signature, error) {
	normalizedTitle, err := c.analyzer.Normalize(f.Title(), "")
	if err != nil {
		return Signature{}, err
	}

	var tokens []string
	for _, field := range []string{f.Title(), f.Author(), f.Mime(), f.MetadataText()} {
		toks, err := c.analyzer.Tokenize(field, "")
		if err != nil {
			return Signature{}, err
		}
		tokens = append(tokens, toks...)
	}

	var tokenHash string
	if len(tokens) > 0 {
		sum := sha256.Sum256([]byte(strings.Join(tokens, "\n")))
		tokenHash = hex.EncodeToString(sum[:])
	}

	return Signature{
		AnalyzerVersion: c.analyzerVersion,
		TokenHash:       tokenHash,
		NormalizedTitle: normalizedTitle,
	}, nil
}

// AnalyzerVersion returns the calculator's fixed analyzer version hash,
// without needing a file — used by the reindex coordinator to detect a
// configuration-only drift sweep.
func (c *Calculator) AnalyzerVersion() string { return c.analyzerVersion }
