// Command docsearchd wires the analyzer, connection pool, write-ahead
// journal, projection writer, reindex coordinator, and query planner into
// a single CLI for indexing, searching, and operating the search core
// against a local SQLite database.
//
// # File Index
//
//   - main.go       - entry point, rootCmd, global flags, shared wiring
//   - diskagg.go    - fileagg.Aggregate backed directly by local files
//   - cmd_index.go  - index, delete, reindex
//   - cmd_search.go - search
//   - cmd_serve.go  - serve (background reindex processor)
//   - cmd_dlq.go    - dlq list, dlq drain
//   - cmd_health.go - health
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docsearch/internal/config"
	"docsearch/internal/logging"
)

var (
	dbPath     string
	configPath string
	verbose    bool

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docsearchd",
	Short: "docsearchd operates a transactional hybrid full-text search index",
	Long: `docsearchd indexes files into a SQLite-backed hybrid search index
(lexical BM25 plus trigram fuzzy fallback) and serves ranked queries
against it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.NewCLILogger(verbose)
		if err != nil {
			return err
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := logging.Initialize(".", cfg.Logging); err != nil {
			fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "docsearch.db", "path to the SQLite database file")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "docsearch.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	dlqCmd.AddCommand(dlqListCmd, dlqDrainCmd)

	rootCmd.AddCommand(
		indexCmd,
		deleteCmd,
		reindexCmd,
		searchCmd,
		serveCmd,
		dlqCmd,
		healthCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
