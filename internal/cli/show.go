package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/geoplan-bench/trajeval/internal/result"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <report.json | results-dir>",
	Short: "Display evaluation results",
	Long: `Shows a single task report, or the summary of a results directory.

Example:
  trajeval show eval-results/2026-01-07T120000/eval_flood-042.json
  trajeval show eval-results/2026-01-07T120000
  trajeval show eval-results/2026-01-07T120000 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("reading results: %w", err)
		}

		if !info.IsDir() {
			rep, err := result.LoadTaskReport(path)
			if err != nil {
				return err
			}
			if showJSON {
				return printJSON(rep)
			}
			displayReport(rep)
			return nil
		}

		summary, err := result.LoadSummary(path)
		if err != nil {
			return err
		}
		if showJSON {
			return printJSON(summary)
		}
		fmt.Print(result.FormatSummary(summary))

		files, err := result.ReportFiles(path)
		if err != nil {
			return err
		}
		fmt.Println(" ─────────────────────────────────────────────────────────")
		fmt.Println(" FILES")
		fmt.Println(" ─────────────────────────────────────────────────────────")
		fmt.Printf(" Summary:     %s/summary.md\n", path)
		fmt.Printf(" Reports:     %d task reports\n", len(files))
		if _, err := os.Stat(filepath.Join(path, result.AttestationFile)); err == nil {
			fmt.Printf(" Attestation: %s/%s\n", path, result.AttestationFile)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output as JSON")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func displayReport(rep *result.TaskReport) {
	fmt.Print(result.FormatTerminal(rep))

	fmt.Println(" ─────────────────────────────────────────────────────────")
	fmt.Println(" AGENTS")
	fmt.Println(" ─────────────────────────────────────────────────────────")
	for _, name := range rep.AgentNames() {
		a := rep.Agents[name]
		fmt.Printf("\n %s: %s\n", name, a.ToolTrajectory)
		fmt.Printf("   recall %.3f  precision %.3f  f1 %.3f\n", a.KeyStepRecall, a.KeyToolPrecision, a.F1Score)
		for _, op := range a.Operations {
			fmt.Printf("   %s\n", op)
		}
	}
	fmt.Println()
}
