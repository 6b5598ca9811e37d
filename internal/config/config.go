// Package config provides configuration loading and management for trajeval.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/geoplan-bench/trajeval/internal/align"
	"github.com/geoplan-bench/trajeval/internal/importance"
	"github.com/geoplan-bench/trajeval/internal/similarity"
	"github.com/geoplan-bench/trajeval/internal/tournament"
)

// Config is the root configuration structure.
type Config struct {
	Paths      PathsConfig      `toml:"paths"`
	Importance ImportanceConfig `toml:"importance"`
	Alignment  AlignmentConfig  `toml:"alignment"`
	Similarity SimilarityConfig `toml:"similarity"`
	Tournament TournamentConfig `toml:"tournament"`
}

// PathsConfig locates inputs and outputs on disk.
type PathsConfig struct {
	CorpusDir      string `toml:"corpus_dir"`      // Directory of task JSON records
	CatalogFile    string `toml:"catalog_file"`    // Tool description YAML; empty uses the built-in catalog
	TemplatesDir   string `toml:"templates_dir"`   // DAG template JSON files, read when importance.source = "templates"
	ImportanceFile string `toml:"importance_file"` // Persisted importance table
	RunsDir        string `toml:"runs_dir"`        // Per-task agent run files
	ResultsDir     string `toml:"results_dir"`     // Evaluation output root
}

// ImportanceConfig tunes the tool importance model.
type ImportanceConfig struct {
	Source        string  `toml:"source"` // "tasks" or "templates"
	BaseCost      float64 `toml:"base_cost"`
	Alpha         float64 `toml:"alpha"`
	Damping       float64 `toml:"damping"`
	MaxIterations int     `toml:"max_iterations"`
	Tolerance     float64 `toml:"tolerance"`
}

// AlignmentConfig tunes the weighted alignment scorer.
type AlignmentConfig struct {
	CostCeiling float64 `toml:"cost_ceiling"`
}

// SimilarityConfig selects the embedding provider behind the similarity cache.
type SimilarityConfig struct {
	Provider        string `toml:"provider"` // "none", "openai" or "ollama"
	Model           string `toml:"model"`
	BaseURL         string `toml:"base_url"`
	APIKeyEnv       string `toml:"api_key_env"`
	VectorCacheSize int    `toml:"vector_cache_size"`
}

// TournamentConfig tunes pairwise completeness ranking.
type TournamentConfig struct {
	KFactor       float64  `toml:"k_factor"`
	InitialRating float64  `toml:"initial_rating"`
	Seed          int64    `toml:"seed"` // 0 picks a time-based seed
	Mode          string   `toml:"mode"` // "sequential" or "batch"
	Parallel      int      `toml:"parallel"`
	JudgeTimeout  int      `toml:"judge_timeout"` // Seconds
	JudgeCommand  string   `toml:"judge_command"`
	JudgeArgs     []string `toml:"judge_args"` // May contain a {prompt} placeholder
}

// Default configuration values.
var Default = Config{
	Paths: PathsConfig{
		CorpusDir:      "./tasks",
		TemplatesDir:   "./dag_templates",
		ImportanceFile: "./data/tool_importance.json",
		RunsDir:        "./runs",
		ResultsDir:     "./eval-results",
	},
	Importance: ImportanceConfig{
		Source:        string(importance.SourceTasks),
		BaseCost:      1.0,
		Alpha:         1.0,
		Damping:       0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	},
	Alignment: AlignmentConfig{
		CostCeiling: align.DefaultCostCeiling,
	},
	Similarity: SimilarityConfig{
		Provider:        "none",
		VectorCacheSize: similarity.DefaultVectorCacheSize,
	},
	Tournament: TournamentConfig{
		KFactor:       32,
		InitialRating: 1000,
		Mode:          string(tournament.ModeSequential),
		Parallel:      4,
		JudgeTimeout:  120,
	},
}

// configPaths returns the list of paths to search for config files.
func configPaths() []string {
	paths := []string{"./trajeval.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".trajeval.toml"))
		paths = append(paths, filepath.Join(home, ".config", "trajeval", "config.toml"))
	}

	return paths
}

// Load loads configuration from a file or discovers it automatically.
// If configFile is empty, it searches standard locations.
// Returns default config if no file is found.
func Load(configFile string) (*Config, error) {
	cfg := Default
	cfg.Tournament.JudgeArgs = append([]string(nil), Default.Tournament.JudgeArgs...)

	var path string
	if configFile != "" {
		path = configFile
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	} else {
		for _, p := range configPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		return &cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.backfill()

	if _, err := tournament.ParseMode(cfg.Tournament.Mode); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if _, err := importance.ParseSource(cfg.Importance.Source); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// backfill restores defaults for fields a partial config left zeroed.
func (c *Config) backfill() {
	d := Default
	if c.Paths.CorpusDir == "" {
		c.Paths.CorpusDir = d.Paths.CorpusDir
	}
	if c.Paths.TemplatesDir == "" {
		c.Paths.TemplatesDir = d.Paths.TemplatesDir
	}
	if c.Paths.ImportanceFile == "" {
		c.Paths.ImportanceFile = d.Paths.ImportanceFile
	}
	if c.Paths.RunsDir == "" {
		c.Paths.RunsDir = d.Paths.RunsDir
	}
	if c.Paths.ResultsDir == "" {
		c.Paths.ResultsDir = d.Paths.ResultsDir
	}
	if c.Importance.Source == "" {
		c.Importance.Source = d.Importance.Source
	}
	if c.Importance.BaseCost <= 0 {
		c.Importance.BaseCost = d.Importance.BaseCost
	}
	if c.Importance.Alpha < 0 {
		c.Importance.Alpha = d.Importance.Alpha
	}
	if c.Importance.Damping <= 0 || c.Importance.Damping >= 1 {
		c.Importance.Damping = d.Importance.Damping
	}
	if c.Importance.MaxIterations <= 0 {
		c.Importance.MaxIterations = d.Importance.MaxIterations
	}
	if c.Importance.Tolerance <= 0 {
		c.Importance.Tolerance = d.Importance.Tolerance
	}
	if c.Alignment.CostCeiling <= 0 {
		c.Alignment.CostCeiling = d.Alignment.CostCeiling
	}
	if c.Similarity.Provider == "" {
		c.Similarity.Provider = d.Similarity.Provider
	}
	if c.Similarity.VectorCacheSize <= 0 {
		c.Similarity.VectorCacheSize = d.Similarity.VectorCacheSize
	}
	if c.Tournament.KFactor <= 0 {
		c.Tournament.KFactor = d.Tournament.KFactor
	}
	if c.Tournament.InitialRating == 0 {
		c.Tournament.InitialRating = d.Tournament.InitialRating
	}
	if c.Tournament.Mode == "" {
		c.Tournament.Mode = d.Tournament.Mode
	}
	if c.Tournament.Parallel <= 0 {
		c.Tournament.Parallel = d.Tournament.Parallel
	}
	if c.Tournament.JudgeTimeout <= 0 {
		c.Tournament.JudgeTimeout = d.Tournament.JudgeTimeout
	}
}

// ImportanceParams converts the importance section to model parameters.
func (c *Config) ImportanceParams() importance.Params {
	return importance.Params{
		BaseCost:      c.Importance.BaseCost,
		Alpha:         c.Importance.Alpha,
		Damping:       c.Importance.Damping,
		MaxIterations: c.Importance.MaxIterations,
		Tolerance:     c.Importance.Tolerance,
	}
}

// ImportanceSource returns the configured graph source and the directory it
// is read from.
func (c *Config) ImportanceSource() (importance.Source, string, error) {
	src, err := importance.ParseSource(c.Importance.Source)
	if err != nil {
		return "", "", err
	}
	if src == importance.SourceTemplates {
		return src, c.Paths.TemplatesDir, nil
	}
	return src, c.Paths.CorpusDir, nil
}

// ProviderConfig converts the similarity section to an embedding provider config.
func (c *Config) ProviderConfig() similarity.ProviderConfig {
	return similarity.ProviderConfig{
		Provider:  c.Similarity.Provider,
		Model:     c.Similarity.Model,
		BaseURL:   c.Similarity.BaseURL,
		APIKeyEnv: c.Similarity.APIKeyEnv,
	}
}

// TournamentParams converts the tournament section to tournament parameters.
func (c *Config) TournamentParams() (tournament.Params, error) {
	mode, err := tournament.ParseMode(c.Tournament.Mode)
	if err != nil {
		return tournament.Params{}, err
	}
	return tournament.Params{
		K:             c.Tournament.KFactor,
		InitialRating: c.Tournament.InitialRating,
		Seed:          c.Tournament.Seed,
		Mode:          mode,
		Parallel:      c.Tournament.Parallel,
		JudgeTimeout:  time.Duration(c.Tournament.JudgeTimeout) * time.Second,
	}, nil
}

// CommandJudge returns the configured external judge, or nil if none is set.
func (c *Config) CommandJudge() *tournament.CommandJudge {
	if c.Tournament.JudgeCommand == "" {
		return nil
	}
	return &tournament.CommandJudge{
		Command: c.Tournament.JudgeCommand,
		Args:    append([]string(nil), c.Tournament.JudgeArgs...),
	}
}
