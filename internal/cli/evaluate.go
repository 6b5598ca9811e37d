package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/geoplan-bench/trajeval/internal/result"
	"github.com/geoplan-bench/trajeval/internal/task"
	"github.com/geoplan-bench/trajeval/internal/telemetry"
)

var (
	evalTasks       string
	evalParallel    int
	evalOutputDir   string
	evalJudge       string
	evalMetricsFile string
	evalDryRun      bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate every agent on every task run",
	Long: `Scores all (or selected) task runs in paths.runs_dir and writes one
report per task plus a batch summary and an integrity attestation.

For each agent the report holds the weighted alignment similarity against
the ground truth, key-step recall / key-tool precision / F1, and the
completeness rating from a pairwise tournament.`,
	Example: `  trajeval evaluate
  trajeval evaluate --tasks flood-042,fire-007
  trajeval evaluate --parallel 8 --judge recorded
  trajeval evaluate --metrics-file /var/lib/node_exporter/trajeval.prom
  trajeval evaluate --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validJudgeMode(evalJudge); err != nil {
			return err
		}
		runs, err := task.LoadRuns(cfg.Paths.RunsDir, logger)
		if err != nil {
			return fmt.Errorf("loading runs: %w", err)
		}
		runs, err = selectRuns(runs, evalTasks)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no task runs found in %s", cfg.Paths.RunsDir)
		}

		if evalDryRun {
			printDryRun(runs)
			return nil
		}

		metrics, err := telemetry.NewMetrics()
		if err != nil {
			return err
		}
		eng, err := newEngine(cfg, evalJudge, metrics, logger)
		if err != nil {
			return err
		}

		if evalOutputDir == "" {
			evalOutputDir = filepath.Join(cfg.Paths.ResultsDir, time.Now().Format("2006-01-02T150405"))
		}
		if err := os.MkdirAll(evalOutputDir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}

		fmt.Println()
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println(" TRAJEVAL - Trajectory Evaluation")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println()
		fmt.Printf(" Tasks:      %d\n", len(runs))
		fmt.Printf(" Tools:      %d in importance table\n", eng.table.Len())
		fmt.Printf(" Similarity: %s\n", cfg.Similarity.Provider)
		fmt.Printf(" Judge:      %s\n", evalJudge)
		if evalParallel > 1 {
			fmt.Printf(" Parallel:   %d\n", evalParallel)
		}
		fmt.Printf(" Output:     %s\n", evalOutputDir)
		fmt.Println()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reports, err := evaluateRuns(ctx, eng, runs, evalOutputDir, evalParallel)
		if err != nil {
			return err
		}

		summary := result.Summarize(reports)
		if err := summary.Save(evalOutputDir); err != nil {
			return err
		}
		opts := result.AttestOptions{Version: Version, CorpusHash: eng.table.Metadata.CorpusHash}
		if _, err := os.Stat(cfg.Paths.ImportanceFile); err == nil {
			opts.ImportanceFile = cfg.Paths.ImportanceFile
		}
		attestation, err := result.Attest(evalOutputDir, opts)
		if err != nil {
			return fmt.Errorf("attesting results: %w", err)
		}
		if err := attestation.Save(evalOutputDir); err != nil {
			return err
		}

		if evalMetricsFile != "" {
			if err := metrics.WriteTextfile(evalMetricsFile); err != nil {
				return fmt.Errorf("writing metrics: %w", err)
			}
			logger.Debug("wrote metrics", "path", evalMetricsFile)
		}

		fmt.Print(result.FormatSummary(summary))
		fmt.Printf(" Results saved to: %s\n\n", evalOutputDir)
		return nil
	},
}

// evaluateRuns scores runs with up to parallel tasks in flight, saving each
// report as it completes. Reports are returned in run order.
func evaluateRuns(ctx context.Context, eng *engine, runs []*task.Run, outDir string, parallel int) ([]*result.TaskReport, error) {
	if parallel <= 0 {
		parallel = 1
	}
	reports := make([]*result.TaskReport, len(runs))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, run := range runs {
		g.Go(func() error {
			rep, err := eng.evaluate(gctx, run)
			if err != nil {
				return err
			}
			if err := rep.Save(outDir); err != nil {
				return fmt.Errorf("saving report for %s: %w", run.ID, err)
			}
			reports[i] = rep

			mu.Lock()
			done++
			fmt.Printf(" [%d/%d] %s (%.2fs)\n", done, len(runs), run.ID, rep.Duration)
			if verbose {
				fmt.Print(result.FormatTerminal(rep))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func printDryRun(runs []*task.Run) {
	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println(" TRAJEVAL - Dry Run")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Printf(" Tasks: %d\n", len(runs))
	fmt.Println()
	fmt.Println(" Tasks that would be evaluated:")
	fmt.Println("─────────────────────────────────────────────────────────────")
	for i, r := range runs {
		judged := "no verdicts"
		if len(r.Verdicts) > 0 {
			judged = fmt.Sprintf("%d verdicts", len(r.Verdicts))
		}
		fmt.Printf(" %3d. %-35s [%d agents, %s]\n", i+1, r.ID, len(r.Agents), judged)
	}
	fmt.Println("─────────────────────────────────────────────────────────────")
	fmt.Println()
}

func init() {
	evaluateCmd.Flags().StringVar(&evalTasks, "tasks", "", "comma-separated task IDs (default: all runs)")
	evaluateCmd.Flags().IntVar(&evalParallel, "parallel", 1, "tasks to evaluate concurrently")
	evaluateCmd.Flags().StringVarP(&evalOutputDir, "output", "o", "", "output directory (default: <results_dir>/<timestamp>)")
	evaluateCmd.Flags().StringVar(&evalJudge, "judge", judgeAuto, "verdict source: auto, recorded, command, none")
	evaluateCmd.Flags().StringVar(&evalMetricsFile, "metrics-file", "", "write Prometheus metrics in textfile format")
	evaluateCmd.Flags().BoolVar(&evalDryRun, "dry-run", false, "list the runs that would be evaluated")
}
