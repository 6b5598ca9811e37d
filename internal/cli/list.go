package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/geoplan-bench/trajeval/internal/task"
)

var (
	listComplexity string
	listJSON       bool
)

// runListing is one row of `trajeval list`.
type runListing struct {
	ID         string          `json:"task_id"`
	Domain     string          `json:"domain,omitempty"`
	Complexity task.Complexity `json:"complexity,omitempty"`
	Weight     float64         `json:"weight"`
	Steps      int             `json:"ground_truth_steps"`
	Agents     []string        `json:"agents"`
	Verdicts   int             `json:"recorded_verdicts"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available task runs",
	Long:  `Lists the task runs in paths.runs_dir, optionally filtered by complexity.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := task.LoadRuns(cfg.Paths.RunsDir, logger)
		if err != nil {
			return fmt.Errorf("loading runs: %w", err)
		}

		var want task.Complexity
		if listComplexity != "" {
			if want, err = task.ParseComplexity(listComplexity); err != nil {
				return err
			}
		}

		listings := make([]runListing, 0, len(runs))
		for _, r := range runs {
			if want != "" && r.Complexity != want {
				continue
			}
			listings = append(listings, newRunListing(r))
		}

		if listJSON {
			return printJSON(listings)
		}
		return outputTable(listings)
	},
}

func init() {
	listCmd.Flags().StringVarP(&listComplexity, "complexity", "c", "", "filter by complexity (simple, medium, complex)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

func newRunListing(r *task.Run) runListing {
	return runListing{
		ID:         r.ID,
		Domain:     r.Domain,
		Complexity: r.Complexity,
		Weight:     task.ComputeWeight(&r.Task).Base,
		Steps:      len(r.Flow().Compact()),
		Agents:     r.AgentNames(),
		Verdicts:   len(r.Verdicts),
	}
}

func outputTable(listings []runListing) error {
	if len(listings) == 0 {
		fmt.Println("No task runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tCOMPLEXITY\tWEIGHT\tSTEPS\tAGENTS")
	fmt.Fprintln(w, "----\t----------\t------\t-----\t------")

	for _, l := range listings {
		agents := strings.Join(l.Agents, ",")
		if len(agents) > 40 {
			agents = agents[:37] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%s\n", l.ID, l.Complexity, l.Weight, l.Steps, agents)
	}

	return w.Flush()
}
