// Package fileagg defines the external-collaborator boundary: the
// authoritative file aggregate, its clock, and its text extractors are
// modeled as interfaces only, plus an in-memory reference implementation
// used by tests. Presentation, DI wiring, DTOs, and
// MIME-specific extractors live outside this module.
package fileagg

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FileID is the 128-bit opaque identifier the projection is keyed by.
type FileID = uuid.UUID

// ParseFileID parses a string into a FileID.
func ParseFileID(s string) (FileID, error) { return uuid.Parse(s) }

// SearchIndexState is attached to each file in the aggregate. It is
// updated only via ConfirmIndexed after a successful projection commit.
type SearchIndexState struct {
	LastIndexedUTC    time.Time
	SchemaVersion     int
	AnalyzerVersion   string
	TokenHash         string
	IndexedContentHash string
	IndexedTitle      string
}

// File is the subset of the authoritative file aggregate the search core
// consumes.
type File interface {
	ID() FileID
	Name() string
	Title() string
	Author() string
	Mime() string
	ContentBytes(ctx context.Context) ([]byte, error)
	ContentHash() string
	MetadataText() string
	MetadataJSON() string
	CreatedUTC() time.Time
	ModifiedUTC() time.Time
	SearchIndexState() SearchIndexState
}

// Clock abstracts wall-clock time for deterministic testing.
type Clock interface {
	UTCNow() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// UTCNow returns the current UTC time.
func (SystemClock) UTCNow() time.Time { return time.Now().UTC() }

// Extractor turns a MIME-typed byte stream into extractable text. Unknown
// MIME types must return a nil string, not an error.
type Extractor interface {
	Extract(ctx context.Context, content []byte, mime string) (*string, error)
}

// Aggregate is the authoritative file store: lookup plus the
// ConfirmIndexed callback the reindex coordinator invokes after a
// successful projection commit.
type Aggregate interface {
	Get(ctx context.Context, id FileID) (File, error)
	ConfirmIndexed(ctx context.Context, id FileID, state SearchIndexState) error
}

// ErrNotFound is returned by Aggregate.Get when id has no file.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "file not found" }
