// Package analyzer implements the text analyzer: Unicode
// normalization, tokenization, optional Porter2 stemming, and stopword
// filtering, configured per named profile.
package analyzer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"docsearch/internal/config"
	"docsearch/internal/docerrors"
	"docsearch/internal/logging"
)

// Analyzer normalizes and tokenizes text under a fixed set of profiles.
// A single Analyzer instance is built from config.AnalyzerConfig and is
// safe for concurrent use (it is stateless over its profile table).
type Analyzer struct {
	defaultProfile string
	profiles       map[string]profile
}

type profile struct {
	stemmer        *Stemmer
	keepNumbers    bool
	stopwords      map[string]struct{}
	splitFilenames bool
}

// New builds an Analyzer from the given configuration. Returns
// UnknownAnalyzerProfile if DefaultProfile does not resolve.
func New(cfg config.AnalyzerConfig) (*Analyzer, error) {
	a := &Analyzer{
		defaultProfile: cfg.DefaultProfile,
		profiles:       make(map[string]profile, len(cfg.Profiles)),
	}
	for name, p := range cfg.Profiles {
		stop := make(map[string]struct{}, len(p.Stopwords))
		for _, w := range p.Stopwords {
			stop[normalizeWord(w)] = struct{}{}
		}
		a.profiles[name] = profile{
			stemmer:        NewStemmer(p.EnableStemming),
			keepNumbers:    p.KeepNumbers,
			stopwords:      stop,
			splitFilenames: p.SplitFilenames,
		}
	}
	if _, ok := a.profiles[a.defaultProfile]; !ok {
		return nil, docerrors.New(docerrors.KindUnknownAnalyzerProfile, "default profile %q has no configuration", a.defaultProfile)
	}
	return a, nil
}

func (a *Analyzer) resolve(name string) (profile, error) {
	if name == "" {
		name = a.defaultProfile
	}
	p, ok := a.profiles[name]
	if !ok {
		return profile{}, docerrors.New(docerrors.KindUnknownAnalyzerProfile, "unknown analyzer profile %q", name)
	}
	return p, nil
}

// specialFolds collapses a small set of Latin letters that NFD/combining-mark
// stripping alone does not reduce to ASCII.
var specialFolds = map[rune]string{
	'ß': "ss",
	'ø': "o",
	'Ø': "o",
	'đ': "d",
	'Đ': "d",
	'þ': "th",
	'Þ': "th",
	'æ': "ae",
	'Æ': "ae",
	'œ': "oe",
	'Œ': "oe",
}

// Normalize lowercases, applies the special-fold map, NFD-decomposes, strips
// combining marks, then NFC-recomposes. Idempotent.
func (a *Analyzer) Normalize(text string, profileName string) (string, error) {
	if _, err := a.resolve(profileName); err != nil {
		return "", err
	}
	return normalizeText(text), nil
}

func normalizeWord(w string) string { return normalizeText(w) }

func normalizeText(text string) string {
	lowered := strings.ToLower(text)

	var folded strings.Builder
	folded.Grow(len(lowered))
	for _, r := range lowered {
		if rep, ok := specialFolds[r]; ok {
			folded.WriteString(rep)
		} else {
			folded.WriteRune(r)
		}
	}

	decomposed := norm.NFD.String(folded.String())

	var stripped strings.Builder
	stripped.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue // combining mark
		}
		stripped.WriteRune(r)
	}

	return norm.NFC.String(stripped.String())
}

// Tokenize walks normalized text and returns its tokens: runs of letters
// (plus digits if keep_numbers, plus -_. if split_filenames), split on
// everything else; filename-run splitting, stopword filtering, and optional
// stemming are then applied in that order.
func (a *Analyzer) Tokenize(text string, profileName string) ([]string, error) {
	p, err := a.resolve(profileName)
	if err != nil {
		return nil, err
	}
	normalized := normalizeText(text)

	var tokens []string
	var run strings.Builder
	flush := func() {
		if run.Len() == 0 {
			return
		}
		for _, t := range splitToken(run.String(), p.splitFilenames) {
			if t == "" {
				continue
			}
			if _, stop := p.stopwords[t]; stop {
				continue
			}
			tokens = append(tokens, p.stemmer.Stem(t))
		}
		run.Reset()
	}

	isFilenameSep := func(r rune) bool {
		return p.splitFilenames && (r == '-' || r == '_' || r == '.')
	}

	for _, r := range normalized {
		switch {
		case unicode.IsLetter(r), p.keepNumbers && unicode.IsDigit(r), isFilenameSep(r):
			run.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	logging.AnalyzerDebug("tokenize profile=%s input_len=%d tokens=%d", profileName, len(text), len(tokens))
	return tokens, nil
}

// splitToken splits a filename-like run on -_. into its component tokens;
// when filename splitting is disabled the run is a plain letter/digit token
// and is returned unchanged.
func splitToken(tok string, splitFilenames bool) []string {
	if !splitFilenames {
		return []string{tok}
	}
	return strings.FieldsFunc(tok, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
}
