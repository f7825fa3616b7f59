package config

// BusyRetryConfig configures the projection writer's busy-retry ladder.
type BusyRetryConfig struct {
	MaxAttempts int   `yaml:"max_attempts"`
	BackoffMS   []int `yaml:"backoff_ms"`
}
