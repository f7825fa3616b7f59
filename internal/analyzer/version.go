package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"docsearch/internal/config"
)

// VersionHash computes the analyzer_version hash: a SHA-256 over a
// canonical serialization of the full analyzer configuration.
// Profiles are sorted by name, stopwords sorted within each profile, so
// any semantic change to the configuration flips the hash.
func VersionHash(cfg config.AnalyzerConfig) string {
	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "default=%s\n", cfg.DefaultProfile)
	for _, name := range names {
		p := cfg.Profiles[name]
		stop := append([]string(nil), p.Stopwords...)
		sort.Strings(stop)
		fmt.Fprintf(&b, "profile=%s stem=%v numbers=%v split=%v stopwords=%s\n",
			name, p.EnableStemming, p.KeepNumbers, p.SplitFilenames, strings.Join(stop, ","))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
