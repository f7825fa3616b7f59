package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docsearch/internal/health"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print the current dead-letter-queue health tier",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	monitor := health.NewMonitor(p.pool.DB())
	snap, err := monitor.Snapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("compute health snapshot: %w", err)
	}
	fmt.Printf("status=%s dlq_depth=%d reindex_state=%s\n", snap.Status, snap.DLQDepth, snap.ReindexState)
	return nil
}
