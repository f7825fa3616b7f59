package config

// TrigramConfig configures the fuzzy trigram fallback.
type TrigramConfig struct {
	MaxTokens int      `yaml:"max_tokens"`
	Fields    []string `yaml:"fields"` // subset of title, author, filename, metadata_text
}
