package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geoplan-bench/trajeval/internal/task"
	"github.com/geoplan-bench/trajeval/internal/tournament"
)

var (
	tournamentJudge string
	tournamentSeed  int64
	tournamentMode  string
	tournamentJSON  bool
)

var tournamentCmd = &cobra.Command{
	Use:   "tournament <task-id>",
	Short: "Rank the agents of one task by pairwise completeness",
	Long: `Runs an Elo tournament over every pair of agents in a task's run file.

Each pair is judged once, in an order shuffled from the seed. Verdicts come
from the run file's recorded verdicts or from tournament.judge_command.
Pairs whose judgment fails or cannot be parsed are skipped.`,
	Example: `  trajeval tournament flood-042
  trajeval tournament flood-042 --judge command --seed 7
  trajeval tournament flood-042 --mode batch --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validJudgeMode(tournamentJudge); err != nil {
			return err
		}
		runs, err := task.LoadRuns(cfg.Paths.RunsDir, logger)
		if err != nil {
			return fmt.Errorf("loading runs: %w", err)
		}
		run, err := task.ResolveRun(runs, args[0])
		if err != nil {
			return err
		}

		params, err := cfg.TournamentParams()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("seed") {
			params.Seed = tournamentSeed
		}
		if cmd.Flags().Changed("mode") {
			if params.Mode, err = tournament.ParseMode(tournamentMode); err != nil {
				return err
			}
		}
		if tournamentJudge == judgeCommand && cfg.CommandJudge() == nil {
			return fmt.Errorf("--judge command requires tournament.judge_command in the config")
		}

		e := &engine{logger: logger, params: params, command: cfg.CommandJudge(), judgeMode: tournamentJudge}
		res, err := tournament.Run(cmd.Context(), params, run.Question, run.Flows(), e.judgeFor(run),
			tournament.WithLogger(logger))
		if err != nil {
			return err
		}

		if tournamentJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Println()
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Printf(" TOURNAMENT: %s\n", run.ID)
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		fmt.Printf(" ID:      %s\n", res.ID)
		fmt.Printf(" Mode:    %s\n", res.Mode)
		fmt.Printf(" Seed:    %d\n", res.Seed)
		fmt.Printf(" Judged:  %d\n", res.Judged)
		fmt.Printf(" Skipped: %d\n", res.Skipped)
		fmt.Println(" ─────────────────────────────────────────────────────────")
		for i, name := range res.Ranking() {
			fmt.Printf(" %-4d %-24s %8.1f\n", i+1, name, res.Ratings[name])
		}
		fmt.Println()
		return nil
	},
}

func init() {
	tournamentCmd.Flags().StringVar(&tournamentJudge, "judge", judgeAuto, "verdict source: auto, recorded, command, none")
	tournamentCmd.Flags().Int64Var(&tournamentSeed, "seed", 0, "shuffle seed (overrides config; 0 is time-based)")
	tournamentCmd.Flags().StringVar(&tournamentMode, "mode", "", "rating mode: sequential or batch (overrides config)")
	tournamentCmd.Flags().BoolVar(&tournamentJSON, "json", false, "output as JSON")
}
