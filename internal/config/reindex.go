package config

import "time"

// ReindexConfig configures the background reindex processor.
type ReindexConfig struct {
	BatchSize          int           `yaml:"batch_size"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	IterationTimeout   time.Duration `yaml:"iteration_timeout"`
	ErrorBackoffBase   time.Duration `yaml:"error_backoff_base"`
	MaxRetriesPerEntry int           `yaml:"max_retries_per_entry"` // 0 = unbounded
}
