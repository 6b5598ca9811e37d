package importance

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/geoplan-bench/trajeval/internal/graph"
	"github.com/geoplan-bench/trajeval/internal/task"
)

const eps = 1e-9

func chain() *graph.TransitionGraph {
	return graph.Build([]task.Trajectory{
		{"search", "download", "clip"},
		{"search", "download", "render"},
		{"download", "clip"},
	})
}

func TestPageRankSumsToOne(t *testing.T) {
	t.Parallel()

	p := DefaultParams()
	pr, err := PageRank(chain(), p.Damping, p.MaxIterations, p.Tolerance)
	if err != nil {
		t.Fatalf("PageRank() error: %v", err)
	}
	sum := 0.0
	for _, v := range pr {
		sum += v
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("PageRank sum = %v, want 1", sum)
	}
	if pr["clip"] <= pr["search"] {
		t.Errorf("expected sink clip (%v) to outrank source search (%v)", pr["clip"], pr["search"])
	}
}

func TestPageRankSymmetricCycle(t *testing.T) {
	t.Parallel()

	g := graph.Build([]task.Trajectory{{"a", "b", "a"}})
	pr, err := PageRank(g, 0.85, 100, 1e-6)
	if err != nil {
		t.Fatalf("PageRank() error: %v", err)
	}
	if math.Abs(pr["a"]-0.5) > 1e-6 || math.Abs(pr["b"]-0.5) > 1e-6 {
		t.Fatalf("PageRank = %v, want 0.5 each", pr)
	}
}

func TestPageRankSelfLoop(t *testing.T) {
	t.Parallel()

	g := graph.Build([]task.Trajectory{{"solo", "solo"}})
	pr, err := PageRank(g, 0.85, 100, 1e-6)
	if err != nil {
		t.Fatalf("PageRank() error: %v", err)
	}
	if math.Abs(pr["solo"]-1) > eps {
		t.Fatalf("PageRank(solo) = %v, want 1", pr["solo"])
	}
}

func TestPageRankNotConverged(t *testing.T) {
	t.Parallel()

	_, err := PageRank(chain(), 0.85, 1, 1e-6)
	if !errors.Is(err, ErrPageRankNotConverged) {
		t.Fatalf("PageRank() error = %v, want ErrPageRankNotConverged", err)
	}
}

func TestComputeCosts(t *testing.T) {
	t.Parallel()

	g := graph.Build([]task.Trajectory{{"a", "b"}, {"a", "c"}})
	table := Compute(g, DefaultParams(), nil)

	if table.Metadata.PageRankError != "" {
		t.Fatalf("unexpected pagerank error: %s", table.Metadata.PageRankError)
	}
	a, ok := table.Lookup("a")
	if !ok {
		t.Fatal("tool a missing from table")
	}
	if a.OutDegreeCentrality != 1 {
		t.Errorf("out-degree centrality of a = %v, want 1", a.OutDegreeCentrality)
	}
	if math.Abs(a.OutDegreeCost-2) > eps {
		t.Errorf("out-degree cost of a = %v, want 2", a.OutDegreeCost)
	}
	wantCombined := (a.OutDegreeCost + a.PageRankCost) / 2
	if math.Abs(a.CombinedCost-wantCombined) > eps {
		t.Errorf("combined cost = %v, want %v", a.CombinedCost, wantCombined)
	}

	b, _ := table.Lookup("b")
	if b.OutDegreeCentrality != 0 {
		t.Errorf("out-degree centrality of sink b = %v, want 0", b.OutDegreeCentrality)
	}

	for _, tool := range table.Tools() {
		if c := table.Cost(tool); c < DefaultParams().BaseCost {
			t.Errorf("Cost(%s) = %v, below base cost", tool, c)
		}
	}
}

func TestComputePageRankFallback(t *testing.T) {
	t.Parallel()

	p := DefaultParams()
	p.MaxIterations = 1
	table := Compute(chain(), p, nil)

	if table.Metadata.PageRankError == "" {
		t.Fatal("expected pagerank diagnostic in metadata")
	}
	for _, tool := range table.Tools() {
		r, _ := table.Lookup(tool)
		if r.PageRankCentrality != 0 {
			t.Errorf("PageRankCentrality(%s) = %v, want 0 after failure", tool, r.PageRankCentrality)
		}
		if math.Abs(r.PageRankCost-p.BaseCost) > eps {
			t.Errorf("PageRankCost(%s) = %v, want base cost", tool, r.PageRankCost)
		}
	}
}

func TestComputeEmptyGraph(t *testing.T) {
	t.Parallel()

	table := Compute(graph.Build(nil), DefaultParams(), nil)
	if table.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", table.Len())
	}
	if got := table.Cost("anything"); got != UnknownToolCost {
		t.Fatalf("Cost() = %v, want %v", got, UnknownToolCost)
	}
}

func TestCostUnknownAndNil(t *testing.T) {
	t.Parallel()

	var nilTable *Table
	if got := nilTable.Cost("x"); got != 1.0 {
		t.Errorf("nil table Cost() = %v, want 1.0", got)
	}
	table := Compute(chain(), DefaultParams(), nil)
	if got := table.Cost("not_a_tool"); got != 1.0 {
		t.Errorf("Cost(unknown) = %v, want 1.0", got)
	}
}

func TestTopOrdering(t *testing.T) {
	t.Parallel()

	table := &Table{Scores: map[string]Record{
		"b": {CombinedImportance: 0.5},
		"a": {CombinedImportance: 0.5},
		"c": {CombinedImportance: 0.9},
		"d": {CombinedImportance: 0.1},
	}}

	top := table.Top(3, MetricImportance)
	want := []string{"c", "a", "b"}
	if len(top) != len(want) {
		t.Fatalf("Top() returned %d entries, want %d", len(top), len(want))
	}
	for i, tool := range want {
		if top[i].Tool != tool {
			t.Errorf("Top()[%d] = %s, want %s", i, top[i].Tool, tool)
		}
	}
	if all := table.Top(0, MetricImportance); len(all) != 4 {
		t.Errorf("Top(0) returned %d entries, want 4", len(all))
	}
}

func TestParseMetric(t *testing.T) {
	t.Parallel()

	if _, err := ParseMetric("combined_cost"); err != nil {
		t.Errorf("ParseMetric(combined_cost) error: %v", err)
	}
	if _, err := ParseMetric("betweenness"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	table := Compute(chain(), DefaultParams(), nil)
	path := filepath.Join(t.TempDir(), "nested", "importance.json")
	if err := table.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Len() != table.Len() {
		t.Fatalf("loaded %d tools, want %d", loaded.Len(), table.Len())
	}
	for _, tool := range table.Tools() {
		if math.Abs(loaded.Cost(tool)-table.Cost(tool)) > eps {
			t.Errorf("Cost(%s) = %v after load, want %v", tool, loaded.Cost(tool), table.Cost(tool))
		}
	}
	if len(loaded.TopCombined) == 0 || loaded.TopCombined[0] != table.TopCombined[0] {
		t.Errorf("TopCombined not preserved: %v vs %v", loaded.TopCombined, table.TopCombined)
	}
}

func TestComputeSingleIsolatedNode(t *testing.T) {
	t.Parallel()

	table := Compute(graph.FromEdges([]string{"only"}, nil), DefaultParams(), nil)
	r, ok := table.Lookup("only")
	if !ok {
		t.Fatal("isolated node missing from table")
	}
	if r.OutDegreeCentrality != 0 {
		t.Errorf("OutDegreeCentrality = %v, want 0", r.OutDegreeCentrality)
	}
	if math.IsNaN(r.PageRankCentrality) || math.IsInf(r.PageRankCentrality, 0) || r.PageRankCentrality < 0 {
		t.Errorf("PageRankCentrality = %v, want finite and non-negative", r.PageRankCentrality)
	}
	if math.Abs(r.PageRankCentrality-1) > 1e-9 {
		t.Errorf("PageRankCentrality = %v, want 1 for a lone node", r.PageRankCentrality)
	}
}
