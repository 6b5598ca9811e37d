package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geoplan-bench/trajeval/internal/task"
)

var alignJSON bool

var alignCmd = &cobra.Command{
	Use:   "align <agent-flow> <reference-flow>",
	Short: "Score one tool flow against a reference",
	Long: `Aligns two tool flows with the importance-weighted edit distance and
prints the similarity score, the raw cost and the edit script.

Flows are comma-separated tool names or JSON lists.`,
	Example: `  trajeval align "search_data,download,clip" "search_data,download,reproject,clip"
  trajeval align '["search","clip"]' '["search","buffer","clip"]' --json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent := task.ParseTrajectory(args[0]).Compact()
		reference := task.ParseTrajectory(args[1]).Compact()

		store, err := newStore(cfg, nil, logger)
		if err != nil {
			return err
		}
		scorer, _, err := newScorer(cfg, store.Table(), nil, logger)
		if err != nil {
			return err
		}
		res := scorer.Align(cmd.Context(), agent, reference)

		if alignJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Println()
		fmt.Printf(" Agent:      %s\n", agent)
		fmt.Printf(" Reference:  %s\n", reference)
		fmt.Println(" ─────────────────────────────────────────────────────────")
		fmt.Printf(" Similarity: %.4f\n", res.SimilarityScore)
		fmt.Printf(" Raw cost:   %.4f (ceiling %.2f per step)\n", res.RawCost, scorer.CostCeiling())
		if res.SimilarityScore < 0 {
			fmt.Println(" ⚠ below the calibrated floor")
		}
		fmt.Println(" ─────────────────────────────────────────────────────────")
		for _, op := range res.Operations {
			fmt.Printf("   %s\n", op)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	alignCmd.Flags().BoolVar(&alignJSON, "json", false, "output as JSON")
}
