// Package health tracks the system's externally-reported health: dead-letter
// queue depth and the reindex background processor's lifecycle state.
// Presentation (HTTP/CLI hosting) is out of scope; this package only
// computes the status a caller would expose.
package health

import (
	"context"
	"database/sql"
	"sync"

	"docsearch/internal/logging"
	"docsearch/internal/reindex"
)

// Status is the DLQ-depth-derived health tier.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const (
	degradedThreshold  = 100
	unhealthyThreshold = 1000
)

// StatusForDepth classifies a DLQ depth into a Status.
func StatusForDepth(depth int) Status {
	switch {
	case depth < degradedThreshold:
		return StatusHealthy
	case depth < unhealthyThreshold:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// Monitor aggregates DLQ depth and reindex processor state into a single
// health snapshot. It satisfies reindex.StateReporter so a Processor can
// report directly into it.
type Monitor struct {
	db *sql.DB

	mu           sync.RWMutex
	reindexState reindex.State
}

// NewMonitor builds a Monitor reading DLQ depth from db.
func NewMonitor(db *sql.DB) *Monitor {
	return &Monitor{db: db, reindexState: reindex.StateStopped}
}

var _ reindex.StateReporter = (*Monitor)(nil)

// ReportReindexState records the reindex processor's latest lifecycle state.
func (m *Monitor) ReportReindexState(state reindex.State) {
	m.mu.Lock()
	m.reindexState = state
	m.mu.Unlock()
}

// DLQDepth counts entries in fts_write_ahead_dlq.
func (m *Monitor) DLQDepth(ctx context.Context) (int, error) {
	var depth int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fts_write_ahead_dlq`).Scan(&depth)
	if err != nil {
		return 0, err
	}
	return depth, nil
}

// Snapshot is the health payload a CLI/HTTP surface would render.
type Snapshot struct {
	Status       Status
	DLQDepth     int
	ReindexState reindex.State
}

// Snapshot computes the current health snapshot.
func (m *Monitor) Snapshot(ctx context.Context) (Snapshot, error) {
	depth, err := m.DLQDepth(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	status := StatusForDepth(depth)
	if status != StatusHealthy {
		logging.Health("status=%s dlq_depth=%d", status, depth)
	}

	m.mu.RLock()
	state := m.reindexState
	m.mu.RUnlock()

	return Snapshot{Status: status, DLQDepth: depth, ReindexState: state}, nil
}
