package tournament

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/geoplan-bench/trajeval/internal/task"
)

// Matchup is the input to one pairwise judgment.
type Matchup struct {
	Question string
	AgentA   string
	FlowA    task.Trajectory
	AgentB   string
	FlowB    task.Trajectory
}

// Judge decides which of two trajectories better completes a task.
type Judge interface {
	Judge(ctx context.Context, m Matchup) (Verdict, error)
}

// JudgeFunc adapts a function to the Judge interface.
type JudgeFunc func(ctx context.Context, m Matchup) (Verdict, error)

// Judge calls f.
func (f JudgeFunc) Judge(ctx context.Context, m Matchup) (Verdict, error) {
	return f(ctx, m)
}

// BuildPrompt renders the completeness comparison prompt for a matchup.
func BuildPrompt(m Matchup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task question: %s\n\n", m.Question)
	b.WriteString("Compare how completely these two tool-calling paths solve the task.\n\n")
	fmt.Fprintf(&b, "Agent A (%s): %s\n", m.AgentA, formatFlow(m.FlowA))
	fmt.Fprintf(&b, "Agent B (%s): %s\n\n", m.AgentB, formatFlow(m.FlowB))
	b.WriteString("Consider whether each path:\n")
	b.WriteString("1. Covers every key aspect the question requires\n")
	b.WriteString("2. Includes the necessary data acquisition and processing steps\n")
	b.WriteString("3. Produces the final result the question asks for\n\n")
	b.WriteString(`Answer with exactly one of "A", "B" or "Tie", or as JSON {"answer": "A"}.`)
	b.WriteString("\n")
	return b.String()
}

func formatFlow(f task.Trajectory) string {
	quoted := make([]string, 0, len(f))
	for _, tool := range f.Compact() {
		quoted = append(quoted, "'"+tool+"'")
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// RecordedJudge answers from verdicts captured ahead of time.
// A verdict recorded for (x, y) also answers (y, x) with the sides swapped.
type RecordedJudge struct {
	verdicts map[[2]string]string
}

// NewRecordedJudge indexes recorded verdicts. Later entries for the same pair win.
func NewRecordedJudge(recorded []task.RecordedVerdict) *RecordedJudge {
	j := &RecordedJudge{verdicts: make(map[[2]string]string, len(recorded))}
	for _, r := range recorded {
		j.verdicts[[2]string{r.AgentA, r.AgentB}] = r.Verdict
		delete(j.verdicts, [2]string{r.AgentB, r.AgentA})
	}
	return j
}

// Len returns the number of recorded pairs.
func (j *RecordedJudge) Len() int {
	return len(j.verdicts)
}

// Judge returns the recorded verdict for the matchup.
func (j *RecordedJudge) Judge(_ context.Context, m Matchup) (Verdict, error) {
	if raw, ok := j.verdicts[[2]string{m.AgentA, m.AgentB}]; ok {
		return ParseVerdict(raw)
	}
	if raw, ok := j.verdicts[[2]string{m.AgentB, m.AgentA}]; ok {
		v, err := ParseVerdict(raw)
		if err != nil {
			return "", err
		}
		return v.Swap(), nil
	}
	return "", fmt.Errorf("%w for %s vs %s", ErrNoVerdict, m.AgentA, m.AgentB)
}

// CommandJudge runs an external adjudicator for every matchup.
// Args may contain a {prompt} placeholder; without one the prompt is sent on stdin.
type CommandJudge struct {
	Command string
	Args    []string
	Env     []string
	Dir     string
}

// Judge runs the command and parses its standard output.
func (j *CommandJudge) Judge(ctx context.Context, m Matchup) (Verdict, error) {
	if j.Command == "" {
		return "", errors.New("judge command is not configured")
	}
	prompt := BuildPrompt(m)

	args := make([]string, 0, len(j.Args))
	usesPlaceholder := false
	for _, a := range j.Args {
		if strings.Contains(a, "{prompt}") {
			usesPlaceholder = true
			a = strings.ReplaceAll(a, "{prompt}", prompt)
		}
		args = append(args, a)
	}

	cmd := exec.CommandContext(ctx, j.Command, args...)
	setupProcessGroup(cmd)
	cmd.WaitDelay = 5 * time.Second
	cmd.Dir = j.Dir
	if len(j.Env) > 0 {
		cmd.Env = append(cmd.Environ(), j.Env...)
	}
	if !usesPlaceholder {
		cmd.Stdin = strings.NewReader(prompt)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("judge command %s: %w", j.Command, ctxErr)
		}
		return "", fmt.Errorf("judge command %s: %w (stderr: %s)",
			j.Command, err, excerpt(strings.TrimSpace(stderr.String())))
	}
	return ParseVerdict(stdout.String())
}
