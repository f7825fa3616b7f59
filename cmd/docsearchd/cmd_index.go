package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsearch/internal/reindex"
)

var indexCmd = &cobra.Command{
	Use:   "index <path>...",
	Short: "Index one or more local files into the search projection",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndex,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <path>...",
	Short: "Remove one or more files from the search projection",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex <path>...",
	Short: "Force a drift-detecting reindex of one or more files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReindex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.close()
	ctx := cmd.Context()

	for _, path := range args {
		id, err := p.agg.track(path)
		if err != nil {
			return fmt.Errorf("track %s: %w", path, err)
		}
		outcome, err := p.coordinator.Notify(ctx, id, reindex.ReasonExternalRequest)
		if err != nil {
			logger.Error("index failed", zap.String("path", path), zap.Error(err))
			return fmt.Errorf("index %s: %w", path, err)
		}
		fmt.Printf("%s: %s (id=%s)\n", path, outcome, id)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.close()
	ctx := cmd.Context()

	conn, err := p.pool.Rent(ctx)
	if err != nil {
		return fmt.Errorf("rent connection: %w", err)
	}
	defer conn.Release()

	for _, path := range args {
		id, err := p.agg.track(path)
		if err != nil {
			return fmt.Errorf("track %s: %w", path, err)
		}
		scope, err := p.writer.Begin(ctx, conn.Conn)
		if err != nil {
			return fmt.Errorf("begin delete transaction: %w", err)
		}
		if err := p.writer.Delete(ctx, scope, id); err != nil {
			_ = scope.Tx.Rollback()
			return fmt.Errorf("delete %s: %w", path, err)
		}
		if err := scope.Tx.Commit(); err != nil {
			return fmt.Errorf("commit delete %s: %w", path, err)
		}
		fmt.Printf("%s: deleted (id=%s)\n", path, id)
	}
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.close()
	ctx := cmd.Context()

	for _, path := range args {
		id, err := p.agg.track(path)
		if err != nil {
			return fmt.Errorf("track %s: %w", path, err)
		}
		outcome, err := p.coordinator.Reindex(ctx, id)
		if err != nil {
			return fmt.Errorf("reindex %s: %w", path, err)
		}
		fmt.Printf("%s: %s (id=%s)\n", path, outcome, id)
	}
	return nil
}
