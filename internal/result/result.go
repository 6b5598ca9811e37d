// Package result provides per-task evaluation reports, batch summaries, and output formatting.
package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/geoplan-bench/trajeval/internal/align"
	"github.com/geoplan-bench/trajeval/internal/task"
	"github.com/geoplan-bench/trajeval/internal/tournament"
)

// AgentReport holds every score one agent received on one task.
type AgentReport struct {
	ToolTrajectory   task.Trajectory   `json:"tool_trajectory"`
	KeySteps         []string          `json:"key_steps"`
	KeyTools         []string          `json:"key_tools"`
	KeyStepRecall    float64           `json:"key_step_recall"`
	KeyToolPrecision float64           `json:"key_tool_precision"`
	F1Score          float64           `json:"f1_score"`
	EditDistance     float64           `json:"enhanced_edit_distance"`
	Similarity       float64           `json:"tool_flow_similarity"`
	Completeness     float64           `json:"completeness_score"`
	Operations       []align.Operation `json:"operations,omitempty"`
}

// TournamentInfo records how the completeness ratings were produced.
type TournamentInfo struct {
	ID      string            `json:"id"`
	Mode    tournament.Mode   `json:"mode"`
	Seed    int64             `json:"seed"`
	Judged  int               `json:"judged"`
	Skipped int               `json:"skipped"`
	Order   []tournament.Pair `json:"order"`
}

// NewTournamentInfo extracts the reportable fields of a tournament result.
func NewTournamentInfo(r *tournament.Result) *TournamentInfo {
	if r == nil {
		return nil
	}
	return &TournamentInfo{
		ID:      r.ID,
		Mode:    r.Mode,
		Seed:    r.Seed,
		Judged:  r.Judged,
		Skipped: r.Skipped,
		Order:   r.Order,
	}
}

// TaskReport is the evaluation record of one task across all agents.
type TaskReport struct {
	TaskID      string                 `json:"task_id"`
	Question    string                 `json:"question"`
	Domain      string                 `json:"domain,omitempty"`
	Complexity  task.Complexity        `json:"complexity,omitempty"`
	GroundTruth task.Trajectory        `json:"ground_truth_tool_flow"`
	Weight      float64                `json:"weight"`
	EvaluatedAt time.Time              `json:"evaluated_at"`
	Duration    float64                `json:"duration_seconds"`
	Tournament  *TournamentInfo        `json:"tournament,omitempty"`
	Agents      map[string]AgentReport `json:"agents"`
}

// NewTaskReport starts a report for t with no agents.
func NewTaskReport(t *task.Task) *TaskReport {
	return &TaskReport{
		TaskID:      t.ID,
		Question:    t.Question,
		Domain:      t.Domain,
		Complexity:  t.Complexity,
		GroundTruth: t.Flow(),
		Weight:      task.ComputeWeight(t).Base,
		EvaluatedAt: time.Now().UTC(),
		Agents:      make(map[string]AgentReport),
	}
}

// AgentNames returns the agents in the report, sorted.
func (r *TaskReport) AgentNames() []string {
	names := make([]string, 0, len(r.Agents))
	for n := range r.Agents {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FileStem returns the base name shared by the report's JSON and markdown files.
func FileStem(taskID string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, taskID)
	return "eval_" + safe
}

// Save writes eval_<task_id>.json and eval_<task_id>.md into dir.
func (r *TaskReport) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}
	stem := FileStem(r.TaskID)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stem+".json"), data, 0644); err != nil {
		return fmt.Errorf("writing %s.json: %w", stem, err)
	}
	if err := os.WriteFile(filepath.Join(dir, stem+".md"), []byte(r.GenerateMarkdown()), 0644); err != nil {
		return fmt.Errorf("writing %s.md: %w", stem, err)
	}
	return nil
}

// LoadTaskReport reads a report written by Save.
func LoadTaskReport(path string) (*TaskReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r TaskReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}

// ReportFiles lists the per-task report files in dir, sorted.
func ReportFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "eval_*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// LoadTaskReports reads every per-task report in dir.
func LoadTaskReports(dir string) ([]*TaskReport, error) {
	files, err := ReportFiles(dir)
	if err != nil {
		return nil, err
	}
	reports := make([]*TaskReport, 0, len(files))
	for _, f := range files {
		r, err := LoadTaskReport(f)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// GenerateMarkdown renders a human-readable report.
func (r *TaskReport) GenerateMarkdown() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Trajectory Evaluation: %s\n\n", r.TaskID)
	fmt.Fprintf(&sb, "**Question:** %s\n\n", r.Question)
	if r.Domain != "" {
		fmt.Fprintf(&sb, "**Domain:** %s\n\n", r.Domain)
	}
	if r.Complexity != "" {
		fmt.Fprintf(&sb, "**Complexity:** %s (weight %.2f)\n\n", r.Complexity, r.Weight)
	}
	fmt.Fprintf(&sb, "**Ground truth:** `%s`\n\n", r.GroundTruth)
	fmt.Fprintf(&sb, "**Evaluated:** %s\n\n", r.EvaluatedAt.Format(time.RFC3339))

	sb.WriteString("---\n\n")
	sb.WriteString("## Scores\n\n")
	sb.WriteString("| Agent | Similarity | Edit Cost | Recall | Precision | F1 | Elo |\n")
	sb.WriteString("|-------|------------|-----------|--------|-----------|----|-----|\n")
	for _, name := range r.rankedAgents() {
		a := r.Agents[name]
		fmt.Fprintf(&sb, "| %s | %.3f | %.3f | %.3f | %.3f | %.3f | %.1f |\n",
			name, a.Similarity, a.EditDistance, a.KeyStepRecall, a.KeyToolPrecision, a.F1Score, a.Completeness)
	}
	sb.WriteString("\n")

	sb.WriteString("## Alignments\n\n")
	for _, name := range r.AgentNames() {
		a := r.Agents[name]
		fmt.Fprintf(&sb, "### %s\n\n", name)
		fmt.Fprintf(&sb, "- **Trajectory:** `%s`\n", a.ToolTrajectory)
		fmt.Fprintf(&sb, "- **Key tools:** %s\n\n", strings.Join(a.KeyTools, ", "))
		if len(a.Operations) > 0 {
			sb.WriteString("<details>\n<summary>Edit script</summary>\n\n```\n")
			for _, op := range a.Operations {
				sb.WriteString(op.String())
				sb.WriteString("\n")
			}
			sb.WriteString("```\n</details>\n\n")
		}
	}

	if t := r.Tournament; t != nil {
		sb.WriteString("---\n\n")
		sb.WriteString("## Tournament\n\n")
		fmt.Fprintf(&sb, "- **ID:** %s\n", t.ID)
		fmt.Fprintf(&sb, "- **Mode:** %s\n", t.Mode)
		fmt.Fprintf(&sb, "- **Seed:** %d\n", t.Seed)
		fmt.Fprintf(&sb, "- **Judged:** %d\n", t.Judged)
		fmt.Fprintf(&sb, "- **Skipped:** %d\n", t.Skipped)
	}

	return sb.String()
}

// rankedAgents orders agents by similarity, highest first.
func (r *TaskReport) rankedAgents() []string {
	names := r.AgentNames()
	sort.SliceStable(names, func(i, j int) bool {
		return r.Agents[names[i]].Similarity > r.Agents[names[j]].Similarity
	})
	return names
}

// FormatTerminal returns a formatted string for terminal output.
func FormatTerminal(r *TaskReport) string {
	if r == nil {
		return ""
	}
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, " TRAJEVAL                          %s\n", r.TaskID)
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	sb.WriteString("\n")
	fmt.Fprintf(&sb, " Ground truth: %s\n", r.GroundTruth)
	sb.WriteString(" ─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(&sb, " %-16s %10s %8s %8s %8s\n", "Agent", "Similarity", "F1", "Elo", "Cost")
	for _, name := range r.rankedAgents() {
		a := r.Agents[name]
		fmt.Fprintf(&sb, " %-16s %10.3f %8.3f %8.1f %8.3f\n",
			name, a.Similarity, a.F1Score, a.Completeness, a.EditDistance)
	}
	if r.Tournament != nil && r.Tournament.Skipped > 0 {
		fmt.Fprintf(&sb, "\n ⚠ %d pairwise comparisons skipped\n", r.Tournament.Skipped)
	}
	sb.WriteString("\n")

	return sb.String()
}
