package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"docsearch/internal/fileagg"
)

// fileIDForPath derives a stable FileID from an absolute path via
// uuid v5, so repeated CLI invocations against the same file agree on
// its identity without a separate id-mapping table.
var pathNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

func fileIDForPath(path string) fileagg.FileID {
	return uuid.NewSHA1(pathNamespace, []byte(path))
}

// diskFile reads its content fresh from disk on every ContentBytes call,
// since the local filesystem (not this process) is the file's owner.
type diskFile struct {
	id   fileagg.FileID
	path string
	info os.FileInfo
}

var _ fileagg.File = (*diskFile)(nil)

func (f *diskFile) ID() fileagg.FileID { return f.id }
func (f *diskFile) Name() string       { return filepath.Base(f.path) }
func (f *diskFile) Title() string      { return filepath.Base(f.path) }
func (f *diskFile) Author() string     { return "" }
func (f *diskFile) Mime() string {
	t := mime.TypeByExtension(filepath.Ext(f.path))
	if t == "" {
		return "application/octet-stream"
	}
	return t
}
func (f *diskFile) ContentBytes(ctx context.Context) ([]byte, error) {
	return os.ReadFile(f.path)
}
func (f *diskFile) ContentHash() string {
	content, err := os.ReadFile(f.path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
func (f *diskFile) MetadataText() string { return "" }
func (f *diskFile) MetadataJSON() string { return "" }
func (f *diskFile) CreatedUTC() time.Time  { return f.info.ModTime().UTC() }
func (f *diskFile) ModifiedUTC() time.Time { return f.info.ModTime().UTC() }
func (f *diskFile) SearchIndexState() fileagg.SearchIndexState {
	return fileagg.SearchIndexState{}
}

// diskAggregate is a demonstration fileagg.Aggregate backed directly by
// the local filesystem: paths registered via track() are the only ones
// Get can resolve, keyed by their deterministic FileID.
type diskAggregate struct {
	mu    sync.RWMutex
	paths map[fileagg.FileID]string
}

var _ fileagg.Aggregate = (*diskAggregate)(nil)

func newDiskAggregate() *diskAggregate {
	return &diskAggregate{paths: make(map[fileagg.FileID]string)}
}

func (a *diskAggregate) track(path string) (fileagg.FileID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fileagg.FileID{}, err
	}
	id := fileIDForPath(abs)
	a.mu.Lock()
	a.paths[id] = abs
	a.mu.Unlock()
	return id, nil
}

func (a *diskAggregate) Get(ctx context.Context, id fileagg.FileID) (fileagg.File, error) {
	a.mu.RLock()
	path, ok := a.paths[id]
	a.mu.RUnlock()
	if !ok {
		return nil, fileagg.ErrNotFound
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fileagg.ErrNotFound
		}
		return nil, err
	}
	return &diskFile{id: id, path: path, info: info}, nil
}

func (a *diskAggregate) ConfirmIndexed(ctx context.Context, id fileagg.FileID, state fileagg.SearchIndexState) error {
	return nil
}
