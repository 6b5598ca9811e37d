// Package task provides task records, tool trajectories, and corpus loading for trajeval.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// EmptyFlowSentinel marks a flow that carries no usable tools.
// A trajectory equal to ["empty"] is produced upstream when generation failed.
const EmptyFlowSentinel = "empty"

// Trajectory is an ordered sequence of tool identifiers.
// Empty strings stand for null entries (JSON null decodes to "").
type Trajectory []string

// Usable reports whether the trajectory carries at least one real tool.
func (t Trajectory) Usable() bool {
	if len(t) == 0 {
		return false
	}
	if len(t) == 1 && t[0] == EmptyFlowSentinel {
		return false
	}
	for _, tool := range t {
		if tool != "" {
			return true
		}
	}
	return false
}

// Compact returns a copy without null entries.
func (t Trajectory) Compact() Trajectory {
	out := make(Trajectory, 0, len(t))
	for _, tool := range t {
		if tool != "" {
			out = append(out, tool)
		}
	}
	return out
}

// String renders the trajectory as "a -> b -> c".
func (t Trajectory) String() string {
	if len(t) == 0 {
		return "(empty)"
	}
	return strings.Join(t, " -> ")
}

// ParseTrajectory accepts either a JSON list of tool names or a comma-separated list.
func ParseTrajectory(s string) Trajectory {
	s = strings.TrimSpace(s)
	if s == "" {
		return Trajectory{}
	}
	if strings.HasPrefix(s, "[") {
		var flow Trajectory
		if err := json.Unmarshal([]byte(s), &flow); err == nil {
			return flow
		}
	}
	var flow Trajectory
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			flow = append(flow, p)
		}
	}
	return flow
}

// Complexity is the author-assigned difficulty tier of a task.
type Complexity string

const (
	Simple  Complexity = "Simple"
	Medium  Complexity = "Medium"
	Complex Complexity = "Complex"
)

// ParseComplexity converts a string to a Complexity, case-insensitively.
func ParseComplexity(s string) (Complexity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple":
		return Simple, nil
	case "medium":
		return Medium, nil
	case "complex":
		return Complex, nil
	default:
		return "", fmt.Errorf("unknown complexity: %s", s)
	}
}

// Task is one benchmark question with its ground-truth tool flow.
type Task struct {
	ID          string     `json:"task_id"`
	Question    string     `json:"question"`
	Domain      string     `json:"domain,omitempty"`
	Complexity  Complexity `json:"complexity,omitempty"`
	GroundTruth Trajectory `json:"ground_truth_tool_flow,omitempty"`
	ToolFlow    Trajectory `json:"tool_flow,omitempty"` // Corpus records may use this name instead
	KeySteps    []string   `json:"key_steps,omitempty"`
}

// Flow returns the task's reference trajectory, preferring ground_truth_tool_flow.
func (t *Task) Flow() Trajectory {
	if len(t.GroundTruth) > 0 {
		return t.GroundTruth
	}
	return t.ToolFlow
}

// Validate checks that required task fields are present.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("task_id is required")
	}
	return nil
}

// Loader reads JSON task records from a directory.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a loader for the given directory.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, logger: logger}
}

// Dir returns the directory the loader reads from.
func (l *Loader) Dir() string {
	return l.dir
}

// LoadAll loads every task record in the directory, sorted by ID.
// Unreadable or invalid files are skipped with a warning.
func (l *Loader) LoadAll() ([]*Task, error) {
	tasks, err := loadJSONDir[Task](l.dir, l.logger)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// Load loads a specific task by ID.
func (l *Loader) Load(id string) (*Task, error) {
	tasks, err := l.LoadAll()
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("task not found: %s", id)
}

// Flows extracts the usable reference flows from tasks, in task order.
func Flows(tasks []*Task) []Trajectory {
	flows := make([]Trajectory, 0, len(tasks))
	for _, t := range tasks {
		if flow := t.Flow(); flow.Usable() {
			flows = append(flows, flow)
		}
	}
	return flows
}

type validator interface {
	Validate() error
}

// loadJSONDir decodes every *.json file in dir into T.
func loadJSONDir[T any](dir string, logger *slog.Logger) ([]*T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	items := make([]*T, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable file", "path", path, "error", err)
			continue
		}
		item := new(T)
		if err := json.Unmarshal(data, item); err != nil {
			logger.Warn("skipping unparseable file", "path", path, "error", err)
			continue
		}
		if v, ok := any(item).(validator); ok {
			if err := v.Validate(); err != nil {
				logger.Warn("skipping invalid file", "path", path, "error", err)
				continue
			}
		}
		items = append(items, item)
	}
	return items, nil
}
