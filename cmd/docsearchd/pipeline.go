package main

import (
	"fmt"

	"docsearch/internal/analyzer"
	"docsearch/internal/dbpool"
	"docsearch/internal/projection"
	"docsearch/internal/reindex"
	"docsearch/internal/schema"
	"docsearch/internal/signature"
	"docsearch/internal/waj"
)

// pipeline bundles every component a command needs, wired from cfg and a
// single pooled SQLite database.
type pipeline struct {
	pool        *dbpool.Pool
	analyzer    *analyzer.Analyzer
	sig         *signature.Calculator
	journal     *waj.Journal
	writer      *projection.Writer
	queue       *reindex.Queue
	agg         *diskAggregate
	coordinator *reindex.Coordinator
}

// openPipeline opens the pool at dbPath and wires every component from cfg.
// The returned pipeline's agg is an in-process disk-backed aggregate: paths
// must be tracked via agg.track before Coordinator.Reindex can resolve them.
func openPipeline() (*pipeline, error) {
	pool, err := dbpool.Open(dbPath, cfg.Pool.MaxPoolSize)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a, err := analyzer.New(cfg.Analyzer)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build analyzer: %w", err)
	}

	sig := signature.NewCalculator(a, cfg.Analyzer)
	journal := waj.New(pool.DB())
	capability := schema.Snapshot(pool.DB())
	writer := projection.New(a, journal, capability, cfg.BusyRetry)
	queue := reindex.NewQueue(pool.DB())
	agg := newDiskAggregate()
	coordinator := reindex.New(pool, writer, sig, agg, queue, cfg.Indexing.Mode)

	return &pipeline{
		pool:        pool,
		analyzer:    a,
		sig:         sig,
		journal:     journal,
		writer:      writer,
		queue:       queue,
		agg:         agg,
		coordinator: coordinator,
	}, nil
}

func (p *pipeline) close() {
	p.pool.Close()
}
