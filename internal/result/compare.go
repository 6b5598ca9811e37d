package result

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Comparison holds a side-by-side comparison of multiple evaluation runs.
type Comparison struct {
	Runs        []ComparisonRun               `json:"runs"`
	AgentMatrix map[string]map[string]float64 `json:"agent_matrix"`
	BestAgent   string                        `json:"best_agent"`
	BestRun     string                        `json:"best_run"`
	BestScore   float64                       `json:"best_weighted_similarity"`
}

// ComparisonRun is one entry in a comparison table.
type ComparisonRun struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Tasks     int     `json:"tasks"`
	Agents    int     `json:"agents"`
	TopAgent  string  `json:"top_agent"`
	TopScore  float64 `json:"top_weighted_similarity"`
	Skipped   int     `json:"skipped_judgments"`
}

// Compare builds a comparison of summaries. ids label the runs and must
// match summaries in length.
func Compare(ids []string, summaries []*Summary) (Comparison, error) {
	if len(ids) != len(summaries) {
		return Comparison{}, fmt.Errorf("got %d labels for %d summaries", len(ids), len(summaries))
	}
	c := Comparison{AgentMatrix: make(map[string]map[string]float64)}

	for i, s := range summaries {
		run := ComparisonRun{
			ID:        ids[i],
			Timestamp: s.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Tasks:     s.Tasks,
			Agents:    len(s.Agents),
			Skipped:   s.SkippedJudging,
		}
		if len(s.Agents) > 0 {
			run.TopAgent = s.Agents[0].Agent
			run.TopScore = s.Agents[0].WeightedSimilarity
		}
		c.Runs = append(c.Runs, run)

		for _, a := range s.Agents {
			if c.AgentMatrix[a.Agent] == nil {
				c.AgentMatrix[a.Agent] = make(map[string]float64)
			}
			c.AgentMatrix[a.Agent][run.ID] = a.WeightedSimilarity
			if a.WeightedSimilarity > c.BestScore {
				c.BestScore = a.WeightedSimilarity
				c.BestAgent = a.Agent
				c.BestRun = run.ID
			}
		}
	}
	return c, nil
}

// CompareDirs loads summary.json from each directory and compares them,
// labelling runs by directory name.
func CompareDirs(dirs []string) (Comparison, error) {
	ids := make([]string, 0, len(dirs))
	summaries := make([]*Summary, 0, len(dirs))
	for _, dir := range dirs {
		s, err := LoadSummary(dir)
		if err != nil {
			return Comparison{}, fmt.Errorf("loading summary from %s: %w", dir, err)
		}
		ids = append(ids, filepath.Base(filepath.Clean(dir)))
		summaries = append(summaries, s)
	}
	return Compare(ids, summaries)
}

// WriteJSON writes the comparison to path.
func (c Comparison) WriteJSON(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling comparison: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing comparison: %w", err)
	}
	return nil
}

// WriteReport writes a human-readable comparison report.
func (c Comparison) WriteReport(w io.Writer) {
	fmt.Fprintf(w, "### Run Comparison\n\n")

	fmt.Fprintf(w, "| Run | Timestamp | Tasks | Agents | Top Agent | Weighted Similarity | Skipped |\n")
	fmt.Fprintf(w, "|-----|-----------|-------|--------|-----------|---------------------|---------|\n")
	for _, r := range c.Runs {
		best := ""
		if r.ID == c.BestRun {
			best = " 🏆"
		}
		fmt.Fprintf(w, "| %s%s | %s | %d | %d | %s | %.3f | %d |\n",
			r.ID, best, r.Timestamp, r.Tasks, r.Agents, r.TopAgent, r.TopScore, r.Skipped)
	}
	fmt.Fprintln(w)

	if len(c.AgentMatrix) == 0 || len(c.Runs) == 0 {
		return
	}
	fmt.Fprintf(w, "### Agent Matrix\n\n")
	fmt.Fprintf(w, "| Agent |")
	for _, r := range c.Runs {
		fmt.Fprintf(w, " %s |", r.ID)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "|-------|")
	for range c.Runs {
		fmt.Fprintf(w, "------|")
	}
	fmt.Fprintln(w)

	agents := make([]string, 0, len(c.AgentMatrix))
	for a := range c.AgentMatrix {
		agents = append(agents, a)
	}
	sort.Strings(agents)

	for _, a := range agents {
		fmt.Fprintf(w, "| %s |", a)
		for _, r := range c.Runs {
			score, ok := c.AgentMatrix[a][r.ID]
			if !ok {
				fmt.Fprintf(w, " — |")
				continue
			}
			fmt.Fprintf(w, " %.3f |", score)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}
