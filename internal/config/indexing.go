package config

// IndexingMode selects whether projection writes happen in the caller's
// transaction or are deferred to the reindex queue.
type IndexingMode string

const (
	ModeSameTransaction IndexingMode = "same_transaction"
	ModeDeferred        IndexingMode = "deferred"
)

// IndexingConfig configures indexing mode and content size limits.
type IndexingConfig struct {
	Mode            IndexingMode `yaml:"mode"`
	MaxContentBytes int64        `yaml:"max_content_bytes"` // 0 = unlimited
}
