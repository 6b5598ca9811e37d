package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geoplan-bench/trajeval/internal/result"
)

var verifyImportance string

var verifyCmd = &cobra.Command{
	Use:   "verify <results-dir>",
	Short: "Verify integrity of an evaluation results directory",
	Long: `Verifies the integrity of a results directory by checking hashes.

This command checks:
  1. Report hashes - ensures no eval_*.json or summary.json was modified
     after generation, and none was added or removed
  2. Importance table - with --importance, ensures the table matches the
     one the results were scored with

No scoring is re-run; this only validates hash integrity.`,
	Example: `  trajeval verify ./eval-results/2026-01-07T120000
  trajeval verify ./submission --importance data/tool_importance.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		v, err := result.Verify(dir)
		if err != nil {
			return err
		}
		a := v.Attestation

		fmt.Println()
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println(" TRAJEVAL - Results Verification")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println()
		fmt.Printf(" Generated: %s\n", a.GeneratedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf(" Version:   %s (weights %s)\n", a.Version, a.WeightVersion)
		if a.CorpusHash != "" {
			fmt.Printf(" Corpus:    %s\n", a.CorpusHash)
		}
		fmt.Printf(" Files:     %d\n", len(a.Files))
		fmt.Println()

		passed, failed, warnings := 0, 0, 0

		fmt.Println("─────────────────────────────────────────────────────────────")
		fmt.Println(" Verifying Result Files")
		fmt.Println("─────────────────────────────────────────────────────────────")
		for _, m := range v.Mismatched {
			fmt.Printf(" ✗ %s - hash mismatch\n", m.File)
			fmt.Printf("     expected: %s\n", m.Expected)
			fmt.Printf("     got:      %s\n", m.Got)
		}
		for _, name := range v.Missing {
			fmt.Printf(" ✗ %s - missing\n", name)
		}
		for _, name := range v.Unattested {
			fmt.Printf(" ✗ %s - not covered by the attestation\n", name)
		}
		if v.OK() {
			fmt.Printf(" ✓ All %d result files match\n", len(v.Matched))
			passed++
		} else {
			fmt.Printf(" ✓ %d file(s) match\n", len(v.Matched))
			failed++
		}
		fmt.Println()

		fmt.Println("─────────────────────────────────────────────────────────────")
		fmt.Println(" Importance Table")
		fmt.Println("─────────────────────────────────────────────────────────────")
		switch {
		case verifyImportance == "":
			fmt.Println(" - skipped (pass --importance to check)")
		case a.ImportanceHash == "":
			fmt.Println(" ? no importance hash recorded")
			warnings++
		default:
			ok, got, err := a.CheckImportance(verifyImportance)
			switch {
			case err != nil:
				fmt.Printf(" ? %v\n", err)
				warnings++
			case ok:
				fmt.Println(" ✓ Importance table matches")
				passed++
			default:
				fmt.Println(" ✗ Importance table differs")
				fmt.Printf("     expected: %s\n", a.ImportanceHash)
				fmt.Printf("     got:      %s\n", got)
				failed++
			}
		}
		fmt.Println()

		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println(" VERIFICATION SUMMARY")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Println()
		if failed == 0 {
			fmt.Printf(" ✓ PASSED: %d checks passed", passed)
			if warnings > 0 {
				fmt.Printf(", %d warnings", warnings)
			}
			fmt.Println()
			fmt.Println()
			return nil
		}
		fmt.Printf(" ✗ FAILED: %d checks failed, %d passed", failed, passed)
		if warnings > 0 {
			fmt.Printf(", %d warnings", warnings)
		}
		fmt.Println()
		fmt.Println()
		return fmt.Errorf("verification failed for %s", dir)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyImportance, "importance", "", "importance table to check against the attestation")
}
