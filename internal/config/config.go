// Package config holds docsearch's configuration: one struct per concern
// (indexing, reindex, analyzer, pool, trigram, merge, busy-retry, logging),
// a DefaultConfig carrying the documented defaults, YAML load/save, environment
// overrides, and an fsnotify-driven hot reload that applies the logging
// section and passes the reloaded config to registered callbacks.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"docsearch/internal/logging"
)

// Config is the top-level docsearch configuration.
type Config struct {
	Indexing  IndexingConfig  `yaml:"indexing"`
	Reindex   ReindexConfig   `yaml:"reindex"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Pool      PoolConfig      `yaml:"pool"`
	Trigram   TrigramConfig   `yaml:"trigram"`
	Merge     MergeConfig     `yaml:"merge"`
	BusyRetry BusyRetryConfig `yaml:"busy_retry"`
	Logging   logging.Config  `yaml:"logging"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Indexing: IndexingConfig{
			Mode:            ModeSameTransaction,
			MaxContentBytes: 0,
		},
		Reindex: ReindexConfig{
			BatchSize:          32,
			PollInterval:       15 * time.Second,
			IterationTimeout:   2 * time.Minute,
			ErrorBackoffBase:   30 * time.Second,
			MaxRetriesPerEntry: 0,
		},
		Analyzer: AnalyzerConfig{
			DefaultProfile: "default",
			Profiles: map[string]AnalyzerProfile{
				"default": {
					EnableStemming: false,
					KeepNumbers:    true,
					Stopwords:      DefaultEnglishStopwords(),
					SplitFilenames: true,
				},
			},
		},
		Pool: PoolConfig{
			MaxPoolSize: 64,
		},
		Trigram: TrigramConfig{
			MaxTokens: 64,
			Fields:    []string{"title", "author", "filename", "metadata_text"},
		},
		Merge: MergeConfig{
			Strategy:             MergeMedianScaled,
			FuzzyScaleFallback:   0.6,
			WeightedAverageAlpha: 0.85,
		},
		BusyRetry: BusyRetryConfig{
			MaxAttempts: 5,
			BackoffMS:   []int{25, 50, 100, 200, 400},
		},
		Logging: logging.Config{
			DebugMode:  false,
			Level:      "info",
			JSONFormat: false,
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults plus
// environment overrides if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("loading config from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	logging.Boot("config loaded from %s (merge_strategy=%s)", path, cfg.Merge.Strategy)
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCSEARCH_POOL_MAX_SIZE"); v != "" {
		if n, err := parseIntEnv(v); err == nil {
			c.Pool.MaxPoolSize = n
		}
	}
	if v := os.Getenv("DOCSEARCH_REINDEX_BATCH_SIZE"); v != "" {
		if n, err := parseIntEnv(v); err == nil {
			c.Reindex.BatchSize = n
		}
	}
	if v := os.Getenv("DOCSEARCH_REINDEX_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Reindex.PollInterval = d
		}
	}
	if v := os.Getenv("DOCSEARCH_MERGE_STRATEGY"); v != "" {
		c.Merge.Strategy = MergeStrategyName(v)
	}
	if v := os.Getenv("DOCSEARCH_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}

func parseIntEnv(v string) (int, error) {
	var n int
	_, err := fmt.Sscanf(v, "%d", &n)
	return n, err
}

// DefaultEnglishStopwords returns the default English stopword list used by
// the "default" analyzer profile.
func DefaultEnglishStopwords() []string {
	return []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
		"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
		"to", "was", "were", "will", "with",
	}
}
