package analyzer

import "strings"

// Trigrams splits s into overlapping 3-rune shingles after lowercasing and
// collapsing whitespace runs, capped at maxTokens (0 means unlimited). Used
// both to populate the trigram fuzzy-match companion table at projection
// time and to build a query-side trigram set for Jaccard scoring.
func Trigrams(s string, maxTokens int) []string {
	folded := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	runes := []rune(folded)
	if len(runes) < 3 {
		if len(runes) == 0 {
			return nil
		}
		return []string{string(runes)}
	}

	var out []string
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
		if maxTokens > 0 && len(out) >= maxTokens {
			break
		}
	}
	return out
}
