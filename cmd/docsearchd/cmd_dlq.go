package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and clear the write-ahead journal's dead-letter queue",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered journal entries",
	Args:  cobra.NoArgs,
	RunE:  runDLQList,
}

var dlqDrainCmd = &cobra.Command{
	Use:   "drain <original-id>",
	Short: "Purge one dead-lettered entry by its original journal id",
	Args:  cobra.ExactArgs(1),
	RunE:  runDLQDrain,
}

func runDLQList(cmd *cobra.Command, args []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	entries, err := p.journal.DeadLetters(cmd.Context())
	if err != nil {
		return fmt.Errorf("list dead letters: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("dead-letter queue is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("id=%d file_id=%s op=%s dead_lettered=%s reason=%q\n",
			e.OriginalID, e.FileID, e.Op, e.DeadLetteredUTC.Format("2006-01-02T15:04:05Z"), e.Error)
	}
	return nil
}

func runDLQDrain(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid original id %q: %w", args[0], err)
	}

	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	if err := p.journal.PurgeDeadLetter(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("purged dead letter entry id=%d\n", id)
	return nil
}
