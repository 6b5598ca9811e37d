package importance

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemplates(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

func sampleTemplates(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTemplates(t, dir, map[string]string{
		"t1.json":      `{"nodes": ["load", "clip", "legend"], "edges": [["load", "clip"]]}`,
		"t2.json":      `{"nodes": ["load", "clip", "render"], "edges": [["load", "clip"], ["clip", "render"], ["render", null], ["lonely"]]}`,
		"broken.json":  `{"nodes": [`,
		"partial.json": `{"nodes": ["x"]}`,
		"notes.txt":    `{"nodes": ["y"], "edges": []}`,
	})
	return dir
}

func TestParseSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Source
		wantErr bool
	}{
		{in: "", want: SourceTasks},
		{in: "tasks", want: SourceTasks},
		{in: "Templates", want: SourceTemplates},
		{in: "dag_templates", want: SourceTemplates},
		{in: "wiki", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseSource(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseSource(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSource(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadTemplatesSkipsInvalid(t *testing.T) {
	t.Parallel()

	templates, err := LoadTemplates(sampleTemplates(t), nil)
	if err != nil {
		t.Fatalf("LoadTemplates() error: %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("loaded %d templates, want 2", len(templates))
	}

	if _, err := LoadTemplates(filepath.Join(t.TempDir(), "absent"), nil); err == nil {
		t.Error("expected error for a missing directory")
	}
}

func TestTemplateGraph(t *testing.T) {
	t.Parallel()

	templates, err := LoadTemplates(sampleTemplates(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	g := TemplateGraph(templates)

	want := []string{"clip", "legend", "load", "render"}
	nodes := g.Nodes()
	if len(nodes) != len(want) {
		t.Fatalf("Nodes() = %v, want %v", nodes, want)
	}
	for i := range want {
		if nodes[i] != want[i] {
			t.Fatalf("Nodes() = %v, want %v", nodes, want)
		}
	}
	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount() = %d, want 2", g.EdgeCount())
	}
	if w := g.Weight("load", "clip"); w != 2 {
		t.Errorf("Weight(load, clip) = %d, want 2 (one per template)", w)
	}
	if g.OutDegree("legend") != 0 {
		t.Error("isolated template tool should have no successors")
	}
}

func TestHashTemplatesOrderIndependent(t *testing.T) {
	t.Parallel()

	a := Template{Nodes: []string{"x"}, Edges: [][]string{{"x", "y"}}}
	b := Template{Nodes: []string{"y"}, Edges: [][]string{}}
	if HashTemplates([]Template{a, b}) != HashTemplates([]Template{b, a}) {
		t.Fatal("hash depends on template order")
	}
	if HashTemplates([]Template{a}) == HashTemplates([]Template{a, b}) {
		t.Fatal("hash ignores an added template")
	}
}

func TestStoreBuildsFromTemplates(t *testing.T) {
	t.Parallel()

	dir := sampleTemplates(t)
	tablePath := filepath.Join(t.TempDir(), "importance.json")
	store := NewStore(tablePath, dir, DefaultParams(), WithSource(SourceTemplates))

	table, err := store.Rebuild()
	if err != nil {
		t.Fatalf("Rebuild() error: %v", err)
	}
	if table.Metadata.Source != "dag_templates" {
		t.Errorf("Source = %q, want dag_templates", table.Metadata.Source)
	}
	if table.Metadata.TotalTemplates != 2 || table.Metadata.TotalTasks != 0 {
		t.Errorf("TotalTemplates/TotalTasks = %d/%d, want 2/0",
			table.Metadata.TotalTemplates, table.Metadata.TotalTasks)
	}
	rec, ok := table.Lookup("legend")
	if !ok {
		t.Fatal("isolated template tool missing from the table")
	}
	if rec.OutDegreeCentrality != 0 || rec.CombinedCost < DefaultParams().BaseCost {
		t.Errorf("legend record = %+v", rec)
	}

	loaded, err := Load(tablePath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Metadata.TotalTemplates != 2 {
		t.Errorf("persisted TotalTemplates = %d, want 2", loaded.Metadata.TotalTemplates)
	}

	if again := store.Table(); !again.Metadata.GeneratedAt.Equal(table.Metadata.GeneratedAt) {
		t.Error("fresh template table was rebuilt instead of reused")
	}
}

func TestStoreRebuildsWhenSourceChanges(t *testing.T) {
	t.Parallel()

	corpus := t.TempDir()
	writeTask(t, corpus, "t1", `["load", "clip"]`)
	tablePath := filepath.Join(t.TempDir(), "importance.json")

	fromTasks := NewStore(tablePath, corpus, DefaultParams()).Table()
	if fromTasks.Metadata.Source != "tasks" {
		t.Fatalf("Source = %q, want tasks", fromTasks.Metadata.Source)
	}

	fromTemplates := NewStore(tablePath, sampleTemplates(t), DefaultParams(), WithSource(SourceTemplates)).Table()
	if fromTemplates.Metadata.Source != "dag_templates" {
		t.Fatalf("Source = %q, want dag_templates after switching source", fromTemplates.Metadata.Source)
	}
	if _, ok := fromTemplates.Lookup("legend"); !ok {
		t.Error("table was not rebuilt from templates")
	}
}
