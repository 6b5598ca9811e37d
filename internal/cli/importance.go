package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/geoplan-bench/trajeval/internal/importance"
)

var (
	importanceStrict   bool
	importanceTopN     int
	importanceMetric   string
	importanceJSON     bool
	importanceDebounce time.Duration
	importanceSource   string
)

var importanceCmd = &cobra.Command{
	Use:   "importance",
	Short: "Build and inspect the tool importance table",
	Long: `Tool importance is derived from the transition graph of the ground-truth
flows in the corpus. Each tool gets an out-degree centrality, a PageRank
centrality and a combined cost used as its insertion/deletion cost during
alignment. The table is persisted to paths.importance_file and rebuilt
whenever the corpus hash changes.

The graph comes from the task corpus (paths.corpus_dir) or, with
importance.source = "templates" or --source templates, from DAG template
files ({"nodes": [...], "edges": [[from, to], ...]}) in paths.templates_dir.
Templates may declare tools that have no edges.`,
}

// importanceStore opens the store, applying a --source override.
func importanceStore(cmd *cobra.Command) (*importance.Store, error) {
	c := *cfg
	if cmd.Flags().Changed("source") {
		c.Importance.Source = importanceSource
	}
	return newStore(&c, nil, logger)
}

var importanceBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the importance table from the corpus",
	Example: `  trajeval importance build
  trajeval importance build --strict
  trajeval importance build --source templates`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := importanceStore(cmd)
		if err != nil {
			return err
		}
		t, err := store.Rebuild()
		if err != nil {
			return fmt.Errorf("building importance table: %w", err)
		}
		if t.Metadata.PageRankError != "" {
			if importanceStrict {
				return fmt.Errorf("pagerank failed: %s", t.Metadata.PageRankError)
			}
			fmt.Printf(" ⚠ PageRank failed, centralities set to 0: %s\n", t.Metadata.PageRankError)
		}

		fmt.Println()
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println(" TRAJEVAL - Tool Importance")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		if store.Source() == importance.SourceTemplates {
			fmt.Printf(" Source:  %s (%d templates)\n", store.CorpusDir(), t.Metadata.TotalTemplates)
		} else {
			fmt.Printf(" Corpus:  %s (%d tasks)\n", store.CorpusDir(), t.Metadata.TotalTasks)
		}
		fmt.Printf(" Graph:   %d tools, %d edges\n", t.Metadata.GraphNodes, t.Metadata.GraphEdges)
		fmt.Printf(" Hash:    %s\n", t.Metadata.CorpusHash)
		fmt.Printf(" Saved:   %s\n", cfg.Paths.ImportanceFile)
		fmt.Println()
		printRanked(t.Top(10, importance.MetricImportance), importance.MetricImportance)
		return nil
	},
}

var importanceTopCmd = &cobra.Command{
	Use:   "top",
	Short: "List the most important tools",
	Example: `  trajeval importance top
  trajeval importance top -n 5 --metric pagerank_centrality
  trajeval importance top --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := importance.ParseMetric(importanceMetric)
		if err != nil {
			return err
		}
		store, err := importanceStore(cmd)
		if err != nil {
			return err
		}
		ranked := store.Table().Top(importanceTopN, m)

		if importanceJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ranked)
		}
		printRanked(ranked, m)
		return nil
	},
}

var importanceWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the importance table whenever the corpus changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := importanceStore(cmd)
		if err != nil {
			return err
		}
		t := store.Table()
		fmt.Printf(" Watching %s (%d tools). Press Ctrl+C to stop.\n", store.CorpusDir(), t.Len())

		err = store.Watch(ctx, importanceDebounce, func(t *importance.Table) {
			fmt.Printf(" [%s] rebuilt: %d tools, %d edges\n",
				time.Now().Format("15:04:05"), t.Len(), t.Metadata.GraphEdges)
		})
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func printRanked(ranked []importance.Ranked, m importance.Metric) {
	fmt.Println(" ─────────────────────────────────────────────────────────")
	fmt.Printf(" %-4s %-36s %s\n", "#", "Tool", m)
	fmt.Println(" ─────────────────────────────────────────────────────────")
	for i, r := range ranked {
		fmt.Printf(" %-4d %-36s %.4f\n", i+1, r.Tool, r.Score)
	}
	if len(ranked) == 0 {
		fmt.Println(" (no tools)")
	}
	fmt.Println()
}

func init() {
	importanceBuildCmd.Flags().BoolVar(&importanceStrict, "strict", false, "fail when PageRank does not converge")

	importanceTopCmd.Flags().IntVarP(&importanceTopN, "top", "n", 20, "number of tools to list (0 for all)")
	importanceTopCmd.Flags().StringVar(&importanceMetric, "metric", string(importance.MetricImportance),
		"ranking metric: out_degree_centrality, pagerank_centrality, combined_importance, combined_cost")
	importanceTopCmd.Flags().BoolVar(&importanceJSON, "json", false, "output as JSON")

	importanceWatchCmd.Flags().DurationVar(&importanceDebounce, "debounce", 500*time.Millisecond, "delay before rebuilding after a change")

	importanceCmd.PersistentFlags().StringVar(&importanceSource, "source", "", "graph source: tasks or templates (overrides config)")

	importanceCmd.AddCommand(importanceBuildCmd)
	importanceCmd.AddCommand(importanceTopCmd)
	importanceCmd.AddCommand(importanceWatchCmd)
}
