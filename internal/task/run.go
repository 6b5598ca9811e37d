package task

import (
	"fmt"
	"log/slog"
	"sort"
)

// AgentRun is the trajectory one agent produced for a task.
type AgentRun struct {
	ToolFlow Trajectory `json:"tool_flow"`
	KeyTools []string   `json:"key_tools,omitempty"`
}

// RecordedVerdict is a pairwise judgment captured ahead of time.
type RecordedVerdict struct {
	AgentA  string `json:"agent_a"`
	AgentB  string `json:"agent_b"`
	Verdict string `json:"verdict"`
}

// Run bundles a task with the trajectories every agent produced for it.
type Run struct {
	Task
	Agents   map[string]AgentRun `json:"agents"`
	Verdicts []RecordedVerdict   `json:"verdicts,omitempty"`
}

// Validate checks that the run names a task and at least one agent.
func (r *Run) Validate() error {
	if err := r.Task.Validate(); err != nil {
		return err
	}
	if len(r.Agents) == 0 {
		return fmt.Errorf("run %s has no agents", r.ID)
	}
	return nil
}

// AgentNames returns the agent names in sorted order.
func (r *Run) AgentNames() []string {
	names := make([]string, 0, len(r.Agents))
	for name := range r.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flows returns each agent's tool flow keyed by agent name.
func (r *Run) Flows() map[string]Trajectory {
	flows := make(map[string]Trajectory, len(r.Agents))
	for name, a := range r.Agents {
		flows[name] = a.ToolFlow
	}
	return flows
}

// LoadRuns loads every run file in dir, sorted by task ID.
// Unreadable or invalid files are skipped with a warning.
func LoadRuns(dir string, logger *slog.Logger) ([]*Run, error) {
	if logger == nil {
		logger = slog.Default()
	}
	runs, err := loadJSONDir[Run](dir, logger)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
	return runs, nil
}

// ResolveRun finds a run by task ID.
func ResolveRun(runs []*Run, id string) (*Run, error) {
	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("run not found for task: %s", id)
}
