package cli

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/geoplan-bench/trajeval/internal/config"
	"github.com/geoplan-bench/trajeval/internal/result"
	"github.com/geoplan-bench/trajeval/internal/task"
	"github.com/geoplan-bench/trajeval/internal/tournament"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

// testConfig lays out a corpus and two task runs under a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	c := config.Default
	c.Paths.CorpusDir = filepath.Join(root, "tasks")
	c.Paths.RunsDir = filepath.Join(root, "runs")
	c.Paths.ImportanceFile = filepath.Join(root, "data", "importance.json")
	c.Paths.ResultsDir = filepath.Join(root, "results")
	c.Tournament.Seed = 5

	writeFile(t, c.Paths.CorpusDir, "flood.json",
		`{"task_id": "flood", "question": "Map flooded roads", "ground_truth_tool_flow": ["search", "download", "clip"]}`)
	writeFile(t, c.Paths.CorpusDir, "fire.json",
		`{"task_id": "fire", "question": "Map burn scars", "tool_flow": ["search", "download", "ndvi"]}`)

	writeFile(t, c.Paths.RunsDir, "flood.json", `{
  "task_id": "flood",
  "question": "Map flooded roads",
  "complexity": "Medium",
  "ground_truth_tool_flow": ["search", null, "download", "clip"],
  "agents": {
    "ReAct": {"tool_flow": ["search", "download", "clip"]},
    "CoT": {"tool_flow": ["search"], "key_tools": ["search", "buffer"]}
  },
  "verdicts": [{"agent_a": "ReAct", "agent_b": "CoT", "verdict": "A"}]
}`)
	writeFile(t, c.Paths.RunsDir, "fire.json", `{
  "task_id": "fire",
  "question": "Map burn scars",
  "ground_truth_tool_flow": ["search", "download", "ndvi"],
  "agents": {
    "ReAct": {"tool_flow": ["search", "ndvi"]},
    "CoT": {"tool_flow": ["download", "ndvi"]}
  }
}`)
	return &c
}

func loadTestRuns(t *testing.T, c *config.Config) []*task.Run {
	t.Helper()
	runs, err := task.LoadRuns(c.Paths.RunsDir, discardLogger())
	if err != nil {
		t.Fatalf("LoadRuns() error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("loaded %d runs, want 2", len(runs))
	}
	return runs
}

func TestEngineEvaluate(t *testing.T) {
	t.Parallel()

	c := testConfig(t)
	eng, err := newEngine(c, judgeAuto, nil, discardLogger())
	if err != nil {
		t.Fatalf("newEngine() error: %v", err)
	}
	if eng.table.Len() != 4 {
		t.Errorf("importance table has %d tools, want 4", eng.table.Len())
	}
	if _, err := os.Stat(c.Paths.ImportanceFile); err != nil {
		t.Errorf("importance table not persisted: %v", err)
	}

	run, err := task.ResolveRun(loadTestRuns(t, c), "flood")
	if err != nil {
		t.Fatal(err)
	}
	rep, err := eng.evaluate(context.Background(), run)
	if err != nil {
		t.Fatalf("evaluate() error: %v", err)
	}

	react, cot := rep.Agents["ReAct"], rep.Agents["CoT"]
	if react.Similarity != 1 || react.EditDistance != 0 {
		t.Errorf("ReAct similarity/cost = %v/%v, want 1/0 (nulls ignored)", react.Similarity, react.EditDistance)
	}
	if cot.Similarity >= react.Similarity {
		t.Errorf("CoT similarity %v should trail ReAct", cot.Similarity)
	}
	if cot.KeyToolPrecision != 0.5 {
		t.Errorf("CoT key tool precision = %v, want 0.5", cot.KeyToolPrecision)
	}
	if math.Abs(react.Completeness-1016) > 1e-9 || math.Abs(cot.Completeness-984) > 1e-9 {
		t.Errorf("completeness = %v/%v, want 1016/984", react.Completeness, cot.Completeness)
	}
	if rep.Tournament == nil || rep.Tournament.Judged != 1 || rep.Tournament.Seed != 5 {
		t.Errorf("tournament info = %+v", rep.Tournament)
	}
	if rep.Complexity != task.Medium {
		t.Errorf("complexity = %q, want Medium", rep.Complexity)
	}
}

func TestEngineEvaluateWithoutJudge(t *testing.T) {
	t.Parallel()

	c := testConfig(t)
	eng, err := newEngine(c, judgeAuto, nil, discardLogger())
	if err != nil {
		t.Fatalf("newEngine() error: %v", err)
	}
	run, _ := task.ResolveRun(loadTestRuns(t, c), "fire")

	rep, err := eng.evaluate(context.Background(), run)
	if err != nil {
		t.Fatalf("evaluate() error: %v", err)
	}
	for name, a := range rep.Agents {
		if a.Completeness != 1000 {
			t.Errorf("%s completeness = %v, want initial rating", name, a.Completeness)
		}
	}
	if rep.Tournament.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", rep.Tournament.Skipped)
	}
}

func TestJudgeFor(t *testing.T) {
	t.Parallel()

	withVerdicts := &task.Run{Verdicts: []task.RecordedVerdict{{AgentA: "a", AgentB: "b", Verdict: "A"}}}
	without := &task.Run{}
	command := &tournament.CommandJudge{Command: "judge"}

	tests := []struct {
		name    string
		mode    string
		command *tournament.CommandJudge
		run     *task.Run
		want    string
	}{
		{"auto prefers recorded", judgeAuto, command, withVerdicts, "recorded"},
		{"auto falls back to command", judgeAuto, command, without, "command"},
		{"auto with nothing", judgeAuto, nil, without, "nil"},
		{"recorded without verdicts", judgeRecorded, command, without, "nil"},
		{"command ignores verdicts", judgeCommand, command, withVerdicts, "command"},
		{"none", judgeNone, command, withVerdicts, "nil"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e := &engine{command: tc.command, judgeMode: tc.mode}
			var got string
			switch e.judgeFor(tc.run).(type) {
			case nil:
				got = "nil"
			case *tournament.RecordedJudge:
				got = "recorded"
			case *tournament.CommandJudge:
				got = "command"
			}
			if got != tc.want {
				t.Fatalf("judgeFor() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	c := testConfig(t)
	if _, err := newEngine(c, "oracle", nil, discardLogger()); err == nil {
		t.Error("expected error for unknown judge mode")
	}
	if _, err := newEngine(c, judgeCommand, nil, discardLogger()); err == nil {
		t.Error("expected error for --judge command without judge_command")
	}

	bad := *c
	bad.Similarity.Provider = "word2vec"
	if _, err := newEngine(&bad, judgeAuto, nil, discardLogger()); err == nil {
		t.Error("expected error for unknown embedding provider")
	}
}

func TestSelectRuns(t *testing.T) {
	t.Parallel()

	runs := []*task.Run{{Task: task.Task{ID: "a"}}, {Task: task.Task{ID: "b"}}, {Task: task.Task{ID: "c"}}}

	got, err := selectRuns(runs, "")
	if err != nil || len(got) != 3 {
		t.Fatalf("selectRuns(all) = %d, %v", len(got), err)
	}
	got, err = selectRuns(runs, " c, a,c,")
	if err != nil || len(got) != 2 || got[0].ID != "c" || got[1].ID != "a" {
		t.Fatalf("selectRuns(c,a) = %v, %v", got, err)
	}
	if _, err := selectRuns(runs, "zzz"); err == nil {
		t.Error("expected error for unknown task")
	}
}

func TestEvaluateRunsWritesReports(t *testing.T) {
	t.Parallel()

	c := testConfig(t)
	eng, err := newEngine(c, judgeAuto, nil, discardLogger())
	if err != nil {
		t.Fatalf("newEngine() error: %v", err)
	}
	runs := loadTestRuns(t, c)
	out := t.TempDir()

	reports, err := evaluateRuns(context.Background(), eng, runs, out, 2)
	if err != nil {
		t.Fatalf("evaluateRuns() error: %v", err)
	}
	if len(reports) != 2 || reports[0].TaskID != runs[0].ID || reports[1].TaskID != runs[1].ID {
		t.Fatalf("reports out of run order: %v, %v", reports[0].TaskID, reports[1].TaskID)
	}
	loaded, err := result.LoadTaskReports(out)
	if err != nil || len(loaded) != 2 {
		t.Fatalf("LoadTaskReports() = %d, %v", len(loaded), err)
	}
}

func TestEvaluateRunsCancelled(t *testing.T) {
	t.Parallel()

	c := testConfig(t)
	c.Tournament.JudgeCommand = "sh"
	c.Tournament.JudgeArgs = []string{"-c", "sleep 5; echo A"}
	eng, err := newEngine(c, judgeCommand, nil, discardLogger())
	if err != nil {
		t.Fatalf("newEngine() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := evaluateRuns(ctx, eng, loadTestRuns(t, c), t.TempDir(), 1); err == nil {
		t.Fatal("expected error from a cancelled batch")
	}
}

func TestNewRunListing(t *testing.T) {
	t.Parallel()

	c := testConfig(t)
	run, _ := task.ResolveRun(loadTestRuns(t, c), "flood")
	l := newRunListing(run)

	if l.Steps != 3 || l.Verdicts != 1 || len(l.Agents) != 2 || l.Agents[0] != "CoT" {
		t.Errorf("listing = %+v", l)
	}
	// 1 + 0.3 medium + 3/20*0.4
	if math.Abs(l.Weight-1.36) > 1e-9 {
		t.Errorf("weight = %v, want 1.36", l.Weight)
	}
}

func TestValidJudgeMode(t *testing.T) {
	t.Parallel()

	for _, m := range []string{judgeAuto, judgeRecorded, judgeCommand, judgeNone} {
		if err := validJudgeMode(m); err != nil {
			t.Errorf("validJudgeMode(%q) error: %v", m, err)
		}
	}
	if validJudgeMode("llm") == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestExpandDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{"run-1", "run-2"} {
		writeFile(t, filepath.Join(root, name), result.SummaryFile, "{}")
	}
	writeFile(t, filepath.Join(root, "scratch"), "notes.txt", "x")

	dirs, err := expandDirs([]string{filepath.Join(root, "*"), filepath.Join(root, "run-1")})
	if err != nil {
		t.Fatalf("expandDirs() error: %v", err)
	}
	if len(dirs) != 2 || filepath.Base(dirs[0]) != "run-1" || filepath.Base(dirs[1]) != "run-2" {
		t.Fatalf("expandDirs() = %v, want run-1 and run-2", dirs)
	}

	missing := filepath.Join(root, "absent")
	if dirs, _ := expandDirs([]string{missing}); len(dirs) != 1 || dirs[0] != missing {
		t.Errorf("literal argument not kept: %v", dirs)
	}
}

func TestNewEngineFromTemplates(t *testing.T) {
	t.Parallel()

	c := testConfig(t)
	c.Importance.Source = "templates"
	c.Paths.TemplatesDir = t.TempDir()
	writeFile(t, c.Paths.TemplatesDir, "flood.json",
		`{"nodes": ["search", "download", "clip", "legend"], "edges": [["search", "download"], ["download", "clip"]]}`)

	eng, err := newEngine(c, judgeNone, nil, discardLogger())
	if err != nil {
		t.Fatalf("newEngine() error: %v", err)
	}
	if eng.table.Metadata.Source != "dag_templates" || eng.table.Metadata.TotalTemplates != 1 {
		t.Errorf("metadata = %+v, want one dag template", eng.table.Metadata)
	}
	if _, ok := eng.table.Lookup("legend"); !ok {
		t.Error("isolated template tool missing from the importance table")
	}

	c.Importance.Source = "wiki"
	if _, err := newEngine(c, judgeNone, nil, discardLogger()); err == nil {
		t.Error("expected error for an unknown importance source")
	}
}
