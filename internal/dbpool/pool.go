// Package dbpool implements the bounded connection pool: leases to the
// embedded SQLite storage with pragma priming on every open and a
// generation counter that invalidates stale leases after Reset.
package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/semaphore"

	"docsearch/internal/logging"
	"docsearch/internal/schema"
)

// Pool is a bounded pool of *sql.Conn handles over a single *sql.DB,
// implementing rent()/release() with generation-based invalidation.
type Pool struct {
	db  *sql.DB
	sem *semaphore.Weighted

	maxSize     int
	busyTimeout time.Duration

	mu         sync.Mutex
	generation uint64
	bag        []*sql.Conn
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithBusyTimeout overrides the busy_timeout pragma applied on every open.
func WithBusyTimeout(d time.Duration) Option {
	return func(p *Pool) { p.busyTimeout = d }
}

// Open creates the SQLite database at path (if needed), ensures the schema,
// and returns a Pool bounded to maxSize outstanding leases.
func Open(path string, maxSize int, opts ...Option) (*Pool, error) {
	timer := logging.StartTimer(logging.CategoryPool, "dbpool.Open")
	defer timer.Stop()

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxSize)

	p := &Pool{
		db:          db,
		sem:         semaphore.NewWeighted(int64(maxSize)),
		maxSize:     maxSize,
		busyTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := schema.Ensure(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	logging.Pool("pool opened at %s (max_size=%d)", path, maxSize)
	return p, nil
}

// DB exposes the underlying *sql.DB for components that need it directly
// (schema migrations, capability snapshots). Callers performing writes
// should go through Rent instead.
func (p *Pool) DB() *sql.DB { return p.db }

// Lease is a scoped acquisition of a pooled connection. Release must be
// called exactly once, on every exit path.
type Lease struct {
	Conn       *sql.Conn
	pool       *Pool
	generation uint64
	released   bool
}

// Rent acquires a lease, blocking until capacity is available or ctx is
// canceled.
func (p *Pool) Rent(ctx context.Context) (*Lease, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire pool capacity: %w", err)
	}

	p.mu.Lock()
	gen := p.generation
	var conn *sql.Conn
	if n := len(p.bag); n > 0 {
		conn = p.bag[n-1]
		p.bag = p.bag[:n-1]
	}
	p.mu.Unlock()

	if conn == nil {
		c, err := p.db.Conn(ctx)
		if err != nil {
			p.sem.Release(1)
			return nil, fmt.Errorf("open connection: %w", err)
		}
		if err := schema.ApplyPragmas(ctx, c, p.busyTimeout); err != nil {
			c.Close()
			p.sem.Release(1)
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
		conn = c
		logging.PoolDebug("minted new connection (generation=%d)", gen)
	}

	return &Lease{Conn: conn, pool: p, generation: gen}, nil
}

// Release returns the lease's connection to the pool, or discards it if
// the pool has since been Reset (stale generation) or is over capacity.
func (l *Lease) Release() {
	if l.released {
		return
	}
	l.released = true
	p := l.pool

	p.mu.Lock()
	stale := l.generation != p.generation
	overCap := len(p.bag) >= p.maxSize
	if !stale && !overCap {
		p.bag = append(p.bag, l.Conn)
		p.mu.Unlock()
		p.sem.Release(1)
		return
	}
	p.mu.Unlock()

	l.Conn.Close()
	p.sem.Release(1)
}

// Reset bumps the generation counter, causing all leases currently
// outstanding to be discarded (not returned to the bag) on Release, and
// drops the idle bag immediately.
func (p *Pool) Reset() {
	p.mu.Lock()
	p.generation++
	bag := p.bag
	p.bag = nil
	p.mu.Unlock()

	for _, c := range bag {
		c.Close()
	}
	logging.Pool("pool reset (generation=%d)", p.generation)
}

// Close closes the pool and its underlying database handle.
func (p *Pool) Close() error {
	p.mu.Lock()
	bag := p.bag
	p.bag = nil
	p.mu.Unlock()

	for _, c := range bag {
		c.Close()
	}
	return p.db.Close()
}
