package importance

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/geoplan-bench/trajeval/internal/graph"
	"github.com/geoplan-bench/trajeval/internal/task"
	"github.com/geoplan-bench/trajeval/internal/telemetry"
)

// Save writes the table as indented JSON, creating parent directories.
func (t *Table) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling importance table: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Load reads a table previously written by Save.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if t.Scores == nil {
		t.Scores = map[string]Record{}
	}
	return &t, nil
}

// HashFlows returns a BLAKE3 digest of the flows that is independent of flow order.
func HashFlows(flows []task.Trajectory) string {
	encoded := make([]string, 0, len(flows))
	for _, f := range flows {
		b, _ := json.Marshal(f)
		encoded = append(encoded, string(b))
	}
	sort.Strings(encoded)

	h := blake3.New()
	for _, e := range encoded {
		_, _ = h.Write([]byte(e))
		_, _ = h.Write([]byte{'\n'})
	}
	return "blake3:" + hex.EncodeToString(h.Sum(nil))
}

// Store serves an importance table backed by a file and rebuilt from a
// corpus directory whenever the corpus changes.
type Store struct {
	tablePath string
	corpusDir string
	source    Source
	params    Params
	logger    *slog.Logger
	metrics   *telemetry.Metrics
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithMetrics attaches rebuild and PageRank failure counters.
func WithMetrics(m *telemetry.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// WithSource selects how the corpus directory is read. The default is
// SourceTasks.
func WithSource(src Source) StoreOption {
	return func(s *Store) { s.source = src }
}

// NewStore creates a store for the given table file and corpus directory.
// Either path may be empty.
func NewStore(tablePath, corpusDir string, p Params, opts ...StoreOption) *Store {
	s := &Store{tablePath: tablePath, corpusDir: corpusDir, source: SourceTasks, params: p}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// CorpusDir returns the directory the store rebuilds from.
func (s *Store) CorpusDir() string {
	return s.corpusDir
}

// Source returns how the corpus directory is read.
func (s *Store) Source() Source {
	return s.source
}

// snapshot is the corpus as last read: its graph, record count and digest.
type snapshot struct {
	graph *graph.TransitionGraph
	total int
	hash  string
}

// Table returns an up-to-date importance table. It never fails: when neither
// a persisted table nor a corpus is available it returns an empty table, so
// every tool costs UnknownToolCost.
func (s *Store) Table() *Table {
	snap, corpusErr := s.loadCorpus()

	persisted, loadErr := s.loadPersisted()

	if corpusErr != nil {
		if persisted != nil {
			s.logger.Debug("corpus unavailable, using persisted table", "error", corpusErr)
			return persisted
		}
		s.logger.Warn("no importance table or corpus available, all tools cost 1.0",
			"table", s.tablePath, "corpus", s.corpusDir)
		return Empty()
	}

	if persisted != nil && persisted.Metadata.CorpusHash == snap.hash &&
		persisted.Metadata.Source == string(s.source) {
		return persisted
	}
	if loadErr != nil && !errors.Is(loadErr, fs.ErrNotExist) {
		s.logger.Warn("ignoring unreadable importance table", "error", loadErr)
	}
	if persisted != nil {
		s.logger.Info("importance table is stale, rebuilding", "path", s.tablePath)
	}

	t := s.build(snap)
	if s.tablePath != "" {
		if err := t.Save(s.tablePath); err != nil {
			s.logger.Warn("failed to persist importance table", "error", err)
		}
	}
	return t
}

// Rebuild recomputes the table from the corpus and saves it, regardless of staleness.
func (s *Store) Rebuild() (*Table, error) {
	snap, err := s.loadCorpus()
	if err != nil {
		return nil, err
	}
	t := s.build(snap)
	if s.tablePath != "" {
		if err := t.Save(s.tablePath); err != nil {
			return t, err
		}
	}
	return t, nil
}

func (s *Store) build(snap snapshot) *Table {
	t := Compute(snap.graph, s.params, s.logger)
	t.Metadata.Source = string(s.source)
	if s.source == SourceTemplates {
		t.Metadata.TotalTemplates = snap.total
	} else {
		t.Metadata.TotalTasks = snap.total
	}
	t.Metadata.CorpusHash = snap.hash
	s.metrics.RecordImportanceRebuild()
	if t.Metadata.PageRankError != "" {
		s.metrics.RecordPageRankFailure()
	}
	s.logger.Info("rebuilt importance table", "source", s.source,
		"records", snap.total, "tools", t.Len(), "edges", t.Metadata.GraphEdges)
	return t
}

func (s *Store) loadCorpus() (snapshot, error) {
	if s.corpusDir == "" {
		return snapshot{}, errors.New("no corpus directory configured")
	}
	if s.source == SourceTemplates {
		templates, err := LoadTemplates(s.corpusDir, s.logger)
		if err != nil {
			return snapshot{}, err
		}
		return snapshot{graph: TemplateGraph(templates), total: len(templates), hash: HashTemplates(templates)}, nil
	}
	tasks, err := task.NewLoader(s.corpusDir, s.logger).LoadAll()
	if err != nil {
		return snapshot{}, fmt.Errorf("loading corpus: %w", err)
	}
	flows := task.Flows(tasks)
	return snapshot{graph: graph.Build(flows), total: len(tasks), hash: HashFlows(flows)}, nil
}

func (s *Store) loadPersisted() (*Table, error) {
	if s.tablePath == "" {
		return nil, fs.ErrNotExist
	}
	return Load(s.tablePath)
}
