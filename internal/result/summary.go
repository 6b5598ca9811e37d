package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/geoplan-bench/trajeval/internal/task"
)

// SummaryFile is the batch summary written next to the per-task reports.
const SummaryFile = "summary.json"

// AgentSummary aggregates one agent's scores over a batch of tasks.
type AgentSummary struct {
	Agent              string             `json:"agent"`
	Tasks              int                `json:"tasks"`
	MeanSimilarity     float64            `json:"mean_similarity"`
	StdDevSimilarity   float64            `json:"stddev_similarity"`
	WeightedSimilarity float64            `json:"weighted_similarity"`
	MeanF1             float64            `json:"mean_f1"`
	StdDevF1           float64            `json:"stddev_f1"`
	WeightedF1         float64            `json:"weighted_f1"`
	MeanRecall         float64            `json:"mean_key_step_recall"`
	MeanPrecision      float64            `json:"mean_key_tool_precision"`
	MeanEditDistance   float64            `json:"mean_edit_distance"`
	MeanCompleteness   float64            `json:"mean_completeness"`
	StdDevCompleteness float64            `json:"stddev_completeness"`
	TaskSimilarity     map[string]float64 `json:"task_similarity"`
}

// Summary is the aggregate of a batch evaluation.
type Summary struct {
	Timestamp      time.Time      `json:"timestamp"`
	WeightVersion  string         `json:"weight_version"`
	Tasks          int            `json:"tasks"`
	TaskIDs        []string       `json:"task_ids"`
	TotalWeight    float64        `json:"total_weight"`
	SkippedJudging int            `json:"skipped_judgments"`
	Agents         []AgentSummary `json:"agents"`
}

type agentSeries struct {
	weights      []float64
	similarity   []float64
	f1           []float64
	recall       []float64
	precision    []float64
	editDistance []float64
	completeness []float64
	taskSim      map[string]float64
}

// Summarize aggregates per-task reports. Agents are ranked by weighted
// similarity, highest first; ties keep name order.
func Summarize(reports []*TaskReport) *Summary {
	s := &Summary{
		Timestamp:     time.Now().UTC(),
		WeightVersion: task.WeightVersion,
		Tasks:         len(reports),
	}

	series := make(map[string]*agentSeries)
	for _, r := range reports {
		s.TaskIDs = append(s.TaskIDs, r.TaskID)
		s.TotalWeight += r.Weight
		if r.Tournament != nil {
			s.SkippedJudging += r.Tournament.Skipped
		}
		for name, a := range r.Agents {
			as := series[name]
			if as == nil {
				as = &agentSeries{taskSim: make(map[string]float64)}
				series[name] = as
			}
			w := r.Weight
			if w <= 0 {
				w = 1
			}
			as.weights = append(as.weights, w)
			as.similarity = append(as.similarity, a.Similarity)
			as.f1 = append(as.f1, a.F1Score)
			as.recall = append(as.recall, a.KeyStepRecall)
			as.precision = append(as.precision, a.KeyToolPrecision)
			as.editDistance = append(as.editDistance, a.EditDistance)
			as.completeness = append(as.completeness, a.Completeness)
			as.taskSim[r.TaskID] = a.Similarity
		}
	}
	sort.Strings(s.TaskIDs)

	for name, as := range series {
		meanSim, sdSim := meanStdDev(as.similarity)
		meanF1, sdF1 := meanStdDev(as.f1)
		meanElo, sdElo := meanStdDev(as.completeness)
		s.Agents = append(s.Agents, AgentSummary{
			Agent:              name,
			Tasks:              len(as.similarity),
			MeanSimilarity:     meanSim,
			StdDevSimilarity:   sdSim,
			WeightedSimilarity: stat.Mean(as.similarity, as.weights),
			MeanF1:             meanF1,
			StdDevF1:           sdF1,
			WeightedF1:         stat.Mean(as.f1, as.weights),
			MeanRecall:         stat.Mean(as.recall, nil),
			MeanPrecision:      stat.Mean(as.precision, nil),
			MeanEditDistance:   stat.Mean(as.editDistance, nil),
			MeanCompleteness:   meanElo,
			StdDevCompleteness: sdElo,
			TaskSimilarity:     as.taskSim,
		})
	}
	sort.Slice(s.Agents, func(i, j int) bool {
		if s.Agents[i].WeightedSimilarity != s.Agents[j].WeightedSimilarity {
			return s.Agents[i].WeightedSimilarity > s.Agents[j].WeightedSimilarity
		}
		return s.Agents[i].Agent < s.Agents[j].Agent
	})
	return s
}

// meanStdDev returns the mean and population standard deviation of vals.
func meanStdDev(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(vals, nil)
}

// Agent returns the summary for name, or nil.
func (s *Summary) Agent(name string) *AgentSummary {
	for i := range s.Agents {
		if s.Agents[i].Agent == name {
			return &s.Agents[i]
		}
	}
	return nil
}

// Save writes summary.json and summary.md into dir.
func (s *Summary) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SummaryFile), data, 0644); err != nil {
		return fmt.Errorf("writing summary.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.md"), []byte(s.GenerateMarkdown()), 0644); err != nil {
		return fmt.Errorf("writing summary.md: %w", err)
	}
	return nil
}

// LoadSummary reads summary.json from dir.
func LoadSummary(dir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if err != nil {
		return nil, fmt.Errorf("reading summary.json: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing summary.json: %w", err)
	}
	return &s, nil
}

// GenerateMarkdown renders the batch leaderboard.
func (s *Summary) GenerateMarkdown() string {
	var sb strings.Builder

	sb.WriteString("# Trajectory Evaluation Summary\n\n")
	fmt.Fprintf(&sb, "**Tasks:** %d (total weight %.2f)\n\n", s.Tasks, s.TotalWeight)
	fmt.Fprintf(&sb, "**Generated:** %s\n\n", s.Timestamp.Format(time.RFC3339))
	if s.SkippedJudging > 0 {
		fmt.Fprintf(&sb, "**Skipped judgments:** %d\n\n", s.SkippedJudging)
	}

	sb.WriteString("| Rank | Agent | Weighted Similarity | Similarity (mean ± sd) | Weighted F1 | Elo (mean ± sd) | Edit Cost |\n")
	sb.WriteString("|------|-------|---------------------|------------------------|-------------|-----------------|-----------|\n")
	for i, a := range s.Agents {
		fmt.Fprintf(&sb, "| %d | %s | %.3f | %.3f ± %.3f | %.3f | %.1f ± %.1f | %.3f |\n",
			i+1, a.Agent, a.WeightedSimilarity, a.MeanSimilarity, a.StdDevSimilarity,
			a.WeightedF1, a.MeanCompleteness, a.StdDevCompleteness, a.MeanEditDistance)
	}
	sb.WriteString("\n")
	return sb.String()
}

// FormatSummary returns the leaderboard for terminal output.
func FormatSummary(s *Summary) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	sb.WriteString(" TRAJEVAL SUMMARY\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, " Tasks: %d   Total weight: %.2f\n", s.Tasks, s.TotalWeight)
	sb.WriteString(" ─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(&sb, " %-4s %-16s %10s %8s %8s\n", "#", "Agent", "W.Sim", "W.F1", "Elo")
	for i, a := range s.Agents {
		fmt.Fprintf(&sb, " %-4d %-16s %10.3f %8.3f %8.1f\n",
			i+1, a.Agent, a.WeightedSimilarity, a.WeightedF1, a.MeanCompleteness)
	}
	if s.SkippedJudging > 0 {
		fmt.Fprintf(&sb, "\n ⚠ %d pairwise comparisons skipped\n", s.SkippedJudging)
	}
	sb.WriteString("\n")
	return sb.String()
}
