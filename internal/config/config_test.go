package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/geoplan-bench/trajeval/internal/importance"
	"github.com/geoplan-bench/trajeval/internal/tournament"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	if Default.Paths.CorpusDir != "./tasks" {
		t.Errorf("default corpus dir = %q, want ./tasks", Default.Paths.CorpusDir)
	}
	if Default.Alignment.CostCeiling != 1.5 {
		t.Errorf("default cost ceiling = %v, want 1.5", Default.Alignment.CostCeiling)
	}
	if Default.Importance.Damping != 0.85 {
		t.Errorf("default damping = %v, want 0.85", Default.Importance.Damping)
	}
	if Default.Similarity.Provider != "none" {
		t.Errorf("default provider = %q, want none", Default.Similarity.Provider)
	}
	if Default.Tournament.KFactor != 32 || Default.Tournament.InitialRating != 1000 {
		t.Errorf("default elo = %v/%v, want 32/1000", Default.Tournament.KFactor, Default.Tournament.InitialRating)
	}
}

func TestLoadNoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Paths.ResultsDir != Default.Paths.ResultsDir {
		t.Errorf("results dir = %q, want %q", cfg.Paths.ResultsDir, Default.Paths.ResultsDir)
	}
}

func TestLoadDiscoversWorkingDirFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())

	if err := os.WriteFile(filepath.Join(dir, "trajeval.toml"), []byte("[paths]\ncorpus_dir = \"./corpus\"\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Paths.CorpusDir != "./corpus" {
		t.Errorf("corpus dir = %q, want ./corpus", cfg.Paths.CorpusDir)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "test.toml")

	content := `
[paths]
corpus_dir = "./geo-tasks"
catalog_file = "./tools.yaml"

[importance]
alpha = 0.5
damping = 0

[alignment]
cost_ceiling = 2.0

[similarity]
provider = "ollama"
model = "nomic-embed-text"

[tournament]
k_factor = 16
seed = 42
mode = "batch"
judge_timeout = 30
judge_command = "llm"
judge_args = ["-m", "gpt-4o", "{prompt}"]
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.CorpusDir != "./geo-tasks" || cfg.Paths.CatalogFile != "./tools.yaml" {
		t.Errorf("paths = %+v", cfg.Paths)
	}
	if cfg.Paths.RunsDir != Default.Paths.RunsDir {
		t.Errorf("runs dir = %q, want default", cfg.Paths.RunsDir)
	}

	p := cfg.ImportanceParams()
	if p.Alpha != 0.5 {
		t.Errorf("alpha = %v, want 0.5", p.Alpha)
	}
	if p.Damping != 0.85 {
		t.Errorf("damping = %v, want zero backfilled to 0.85", p.Damping)
	}
	if cfg.Alignment.CostCeiling != 2.0 {
		t.Errorf("cost ceiling = %v, want 2.0", cfg.Alignment.CostCeiling)
	}

	pc := cfg.ProviderConfig()
	if pc.Provider != "ollama" || pc.Model != "nomic-embed-text" {
		t.Errorf("provider config = %+v", pc)
	}
	if cfg.Similarity.VectorCacheSize != Default.Similarity.VectorCacheSize {
		t.Errorf("vector cache size = %d, want default", cfg.Similarity.VectorCacheSize)
	}

	tp, err := cfg.TournamentParams()
	if err != nil {
		t.Fatalf("TournamentParams() error = %v", err)
	}
	if tp.K != 16 || tp.Seed != 42 || tp.Mode != tournament.ModeBatch || tp.JudgeTimeout != 30*time.Second {
		t.Errorf("tournament params = %+v", tp)
	}
	if tp.InitialRating != 1000 || tp.Parallel != 4 {
		t.Errorf("tournament defaults lost: %+v", tp)
	}

	j := cfg.CommandJudge()
	if j == nil || j.Command != "llm" || len(j.Args) != 3 || j.Args[2] != "{prompt}" {
		t.Errorf("command judge = %+v", j)
	}
}

func TestLoadInvalidMode(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(cfgPath, []byte("[tournament]\nmode = \"swiss\"\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() should reject an unknown tournament mode")
	}
}

func TestLoadMalformed(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(cfgPath, []byte("[paths\ncorpus_dir = "), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() should fail on malformed TOML")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("Load() should error for missing explicit file")
	}
}

func TestCommandJudgeUnset(t *testing.T) {
	t.Parallel()

	cfg := Default
	if cfg.CommandJudge() != nil {
		t.Error("CommandJudge() should be nil without judge_command")
	}
}

func TestLoadImportanceSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "trajeval.toml")
	content := `
[paths]
templates_dir = "/data/dags"

[importance]
source = "templates"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	src, srcDir, err := cfg.ImportanceSource()
	if err != nil {
		t.Fatalf("ImportanceSource() error: %v", err)
	}
	if src != importance.SourceTemplates || srcDir != "/data/dags" {
		t.Errorf("ImportanceSource() = %s, %s; want dag_templates, /data/dags", src, srcDir)
	}

	src, srcDir, _ = Default.ImportanceSource()
	if src != importance.SourceTasks || srcDir != Default.Paths.CorpusDir {
		t.Errorf("default ImportanceSource() = %s, %s", src, srcDir)
	}
}

func TestLoadInvalidImportanceSource(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(cfgPath, []byte("[importance]\nsource = \"wiki\"\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() should reject an unknown importance source")
	}
}
