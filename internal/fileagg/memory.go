package fileagg

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryFile is a plain-data File used by tests.
type MemoryFile struct {
	FileIDValue    FileID
	NameValue      string
	TitleValue     string
	AuthorValue    string
	MimeValue      string
	Content        []byte
	MetadataTextV  string
	MetadataJSONV  string
	CreatedAt      time.Time
	ModifiedAt     time.Time
	IndexStateV    SearchIndexState
}

var _ File = (*MemoryFile)(nil)

func (f *MemoryFile) ID() FileID     { return f.FileIDValue }
func (f *MemoryFile) Name() string   { return f.NameValue }
func (f *MemoryFile) Title() string  { return f.TitleValue }
func (f *MemoryFile) Author() string { return f.AuthorValue }
func (f *MemoryFile) Mime() string   { return f.MimeValue }
func (f *MemoryFile) ContentBytes(ctx context.Context) ([]byte, error) {
	return f.Content, nil
}
func (f *MemoryFile) ContentHash() string {
	sum := sha256.Sum256(f.Content)
	return hex.EncodeToString(sum[:])
}
func (f *MemoryFile) MetadataText() string          { return f.MetadataTextV }
func (f *MemoryFile) MetadataJSON() string          { return f.MetadataJSONV }
func (f *MemoryFile) CreatedUTC() time.Time         { return f.CreatedAt }
func (f *MemoryFile) ModifiedUTC() time.Time        { return f.ModifiedAt }
func (f *MemoryFile) SearchIndexState() SearchIndexState { return f.IndexStateV }

// MemoryAggregate is an in-memory Aggregate, useful for unit tests; not a
// production file store.
type MemoryAggregate struct {
	mu    sync.RWMutex
	files map[FileID]*MemoryFile
}

var _ Aggregate = (*MemoryAggregate)(nil)

// NewMemoryAggregate returns an empty in-memory aggregate.
func NewMemoryAggregate() *MemoryAggregate {
	return &MemoryAggregate{files: make(map[FileID]*MemoryFile)}
}

// Put inserts or replaces a file, assigning a new FileID if unset.
func (a *MemoryAggregate) Put(f *MemoryFile) FileID {
	a.mu.Lock()
	defer a.mu.Unlock()
	if f.FileIDValue == (FileID{}) {
		f.FileIDValue = uuid.New()
	}
	a.files[f.FileIDValue] = f
	return f.FileIDValue
}

// Delete removes a file from the aggregate.
func (a *MemoryAggregate) Delete(id FileID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.files, id)
}

func (a *MemoryAggregate) Get(ctx context.Context, id FileID) (File, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

func (a *MemoryAggregate) ConfirmIndexed(ctx context.Context, id FileID, state SearchIndexState) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.files[id]
	if !ok {
		return ErrNotFound
	}
	f.IndexStateV = state
	return nil
}
