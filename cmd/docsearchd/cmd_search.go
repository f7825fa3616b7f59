package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docsearch/internal/query"
)

var (
	searchLimit      int
	searchMimePrefix string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a hybrid lexical/trigram search against the projection",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchMimePrefix, "mime-prefix", "", "restrict results to a MIME prefix")
}

func runSearch(cmd *cobra.Command, args []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	planner := query.NewPlanner(p.pool.DB(), p.analyzer, cfg.Merge, cfg.Analyzer.DefaultProfile)
	filter := query.Filter{MimePrefix: searchMimePrefix}
	res, err := planner.Search(cmd.Context(), args[0], filter, query.Page{Limit: searchLimit})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(res.Hits) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, h := range res.Hits {
		fmt.Printf("%2d. [%s] %-40s score=%.3f %s\n", i+1, h.Source, h.Title, h.Score, h.Mime)
		if h.Snippet != "" {
			fmt.Printf("    %s\n", h.Snippet)
		}
	}
	fmt.Printf("(%d of %d total)\n", len(res.Hits), res.Total)
	return nil
}
