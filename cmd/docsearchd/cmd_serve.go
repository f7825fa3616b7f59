package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsearch/internal/health"
	"docsearch/internal/reindex"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background reindex processor until interrupted",
	Long: `serve starts the ticker-driven reindex processor that drains
reindex_queue with jittered polling and exponential backoff on repeated
failures, reporting its lifecycle state into the health monitor.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	monitor := health.NewMonitor(p.pool.DB())
	proc := reindex.NewProcessor(p.coordinator, p.queue, cfg.Reindex, monitor)
	proc.Start()
	logger.Info("reindex processor started", zap.String("db", dbPath), zap.Duration("poll_interval", cfg.Reindex.PollInterval))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	fmt.Println("shutting down...")
	proc.Stop()
	return nil
}
