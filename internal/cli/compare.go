package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/geoplan-bench/trajeval/internal/result"
)

var compareOutputFile string

var compareCmd = &cobra.Command{
	Use:   "compare <dir> [dir...]",
	Short: "Compare multiple evaluation results side-by-side",
	Long: `Compare two or more results directories and produce a side-by-side
table of each agent's weighted similarity across runs.

Supports glob patterns for convenient selection of multiple directories.`,
	Example: `  trajeval compare eval-results/2026-01-07T120000 eval-results/2026-01-08T090000
  trajeval compare eval-results/* -o comparison.json`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dirs, err := expandDirs(args)
		if err != nil {
			return err
		}
		if len(dirs) < 2 {
			return fmt.Errorf("need at least 2 results directories, got %d", len(dirs))
		}
		comparison, err := result.CompareDirs(dirs)
		if err != nil {
			return err
		}

		if compareOutputFile != "" {
			if err := comparison.WriteJSON(compareOutputFile); err != nil {
				return err
			}
			fmt.Printf(" Comparison saved to: %s\n", compareOutputFile)
		}

		comparison.WriteReport(os.Stdout)
		return nil
	},
}

// expandDirs resolves glob patterns to directories holding a summary.
// Arguments without glob metacharacters are kept as given.
func expandDirs(args []string) ([]string, error) {
	var dirs []string
	seen := make(map[string]bool)
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			matches = []string{arg}
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			if len(matches) > 1 {
				if _, err := os.Stat(filepath.Join(m, result.SummaryFile)); err != nil {
					continue
				}
			}
			seen[m] = true
			dirs = append(dirs, m)
		}
	}
	return dirs, nil
}

func init() {
	compareCmd.Flags().StringVarP(&compareOutputFile, "output", "o", "", "write comparison JSON to file")
}
