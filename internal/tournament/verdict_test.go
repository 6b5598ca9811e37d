package tournament

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/geoplan-bench/trajeval/internal/task"
)

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    Verdict
		wantErr error
	}{
		{name: "bare A", raw: "A", want: VerdictA},
		{name: "quoted B", raw: `"B"`, want: VerdictB},
		{name: "lowercase tie", raw: "tie\n", want: VerdictTie},
		{name: "last line wins", raw: "Thinking it over...\n\nTie", want: VerdictTie},
		{name: "json", raw: `{"answer": "A"}`, want: VerdictA},
		{name: "fenced json", raw: "```json\n{\"answer\": \"B\"}\n```", want: VerdictB},
		{name: "json with prose", raw: "Here you go: {\"answer\": \"Tie\"} done", want: VerdictTie},
		{name: "repairable json", raw: `{answer: 'A'`, want: VerdictA},
		{name: "empty", raw: "   ", wantErr: ErrNoVerdict},
		{name: "unknown token", raw: "C", wantErr: ErrUnparseableVerdict},
		{name: "sentence", raw: "Agent A is better overall", wantErr: ErrUnparseableVerdict},
		{name: "json wrong answer", raw: `{"answer": "both"}`, wantErr: ErrUnparseableVerdict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseVerdict(tc.raw)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ParseVerdict(%q) error = %v, want %v", tc.raw, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVerdict(%q) error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("ParseVerdict(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestVerdictSwap(t *testing.T) {
	t.Parallel()

	if VerdictA.Swap() != VerdictB || VerdictB.Swap() != VerdictA || VerdictTie.Swap() != VerdictTie {
		t.Fatal("Swap() does not mirror verdicts")
	}
	if Verdict("C").Valid() {
		t.Fatal("C should not be a valid verdict")
	}
}

func TestRecordedJudge(t *testing.T) {
	t.Parallel()

	j := NewRecordedJudge([]task.RecordedVerdict{
		{AgentA: "ReAct", AgentB: "CoT", Verdict: "A"},
		{AgentA: "CoT", AgentB: "Debate", Verdict: "maybe"},
	})
	ctx := context.Background()

	v, err := j.Judge(ctx, Matchup{AgentA: "ReAct", AgentB: "CoT"})
	if err != nil || v != VerdictA {
		t.Fatalf("Judge(ReAct, CoT) = %q, %v, want A", v, err)
	}
	v, err = j.Judge(ctx, Matchup{AgentA: "CoT", AgentB: "ReAct"})
	if err != nil || v != VerdictB {
		t.Fatalf("Judge(CoT, ReAct) = %q, %v, want B after swap", v, err)
	}
	if _, err := j.Judge(ctx, Matchup{AgentA: "CoT", AgentB: "Debate"}); !errors.Is(err, ErrUnparseableVerdict) {
		t.Fatalf("invalid recorded verdict error = %v", err)
	}
	if _, err := j.Judge(ctx, Matchup{AgentA: "X", AgentB: "Y"}); !errors.Is(err, ErrNoVerdict) {
		t.Fatalf("missing verdict error = %v", err)
	}
}

func TestRecordedJudgeLaterEntryWins(t *testing.T) {
	t.Parallel()

	j := NewRecordedJudge([]task.RecordedVerdict{
		{AgentA: "a", AgentB: "b", Verdict: "A"},
		{AgentA: "b", AgentB: "a", Verdict: "A"},
	})
	if j.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", j.Len())
	}
	v, _ := j.Judge(context.Background(), Matchup{AgentA: "a", AgentB: "b"})
	if v != VerdictB {
		t.Fatalf("Judge(a, b) = %q, want B from the later entry", v)
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt(Matchup{
		Question: "Map burned area",
		AgentA:   "ReAct",
		FlowA:    task.Trajectory{"search", "", "clip"},
		AgentB:   "CoT",
		FlowB:    nil,
	})
	for _, want := range []string{
		"Task question: Map burned area",
		"Agent A (ReAct): ['search', 'clip']",
		"Agent B (CoT): []",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestCommandJudge(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	t.Parallel()

	ctx := context.Background()
	m := Matchup{Question: "q", AgentA: "x", FlowA: task.Trajectory{"a"}, AgentB: "y", FlowB: task.Trajectory{"b"}}

	tests := []struct {
		name    string
		judge   *CommandJudge
		want    Verdict
		wantErr bool
	}{
		{
			name:  "json on stdout",
			judge: &CommandJudge{Command: "sh", Args: []string{"-c", `cat >/dev/null; echo '{"answer": "B"}'`}},
			want:  VerdictB,
		},
		{
			name:  "prompt placeholder",
			judge: &CommandJudge{Command: "sh", Args: []string{"-c", `printf '%s' "$1" | grep -q "Agent A (x)" && echo Tie`, "sh", "{prompt}"}},
			want:  VerdictTie,
		},
		{
			name:    "non-zero exit",
			judge:   &CommandJudge{Command: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}},
			wantErr: true,
		},
		{
			name:    "garbage output",
			judge:   &CommandJudge{Command: "sh", Args: []string{"-c", "echo maybe"}},
			wantErr: true,
		},
		{
			name:    "not configured",
			judge:   &CommandJudge{},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := tc.judge.Judge(ctx, m)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got verdict %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Judge() error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Judge() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCommandJudgeTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	j := &CommandJudge{Command: "sh", Args: []string{"-c", "sleep 5; echo A"}}
	if _, err := j.Judge(ctx, Matchup{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Judge() error = %v, want deadline exceeded", err)
	}
}
