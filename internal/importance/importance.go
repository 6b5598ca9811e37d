// Package importance derives per-tool deletion and insertion costs from a
// tool-transition graph using out-degree and PageRank centrality.
package importance

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/geoplan-bench/trajeval/internal/graph"
)

// UnknownToolCost is the cost of any tool absent from the table.
const UnknownToolCost = 1.0

// Params controls centrality and cost computation.
type Params struct {
	BaseCost      float64
	Alpha         float64 // PageRank weight in the PageRank cost
	Damping       float64
	MaxIterations int
	Tolerance     float64
}

// DefaultParams returns the standard cost parameters.
func DefaultParams() Params {
	return Params{
		BaseCost:      1.0,
		Alpha:         1.0,
		Damping:       0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// Metric names a sortable field of Record.
type Metric string

const (
	MetricOutDegree  Metric = "out_degree_centrality"
	MetricPageRank   Metric = "pagerank_centrality"
	MetricImportance Metric = "combined_importance"
	MetricCost       Metric = "combined_cost"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricOutDegree, MetricPageRank, MetricImportance, MetricCost:
		return m, nil
	default:
		return "", fmt.Errorf("unknown metric: %s", s)
	}
}

// Record holds the centralities and derived costs of one tool.
type Record struct {
	OutDegreeCentrality float64 `json:"out_degree_centrality"`
	PageRankCentrality  float64 `json:"pagerank_centrality"`
	OutDegreeCost       float64 `json:"out_degree_cost"`
	PageRankCost        float64 `json:"pagerank_cost"`
	CombinedImportance  float64 `json:"combined_importance"`
	CombinedCost        float64 `json:"combined_cost"`
}

// Value returns the field named by m.
func (r Record) Value(m Metric) float64 {
	switch m {
	case MetricOutDegree:
		return r.OutDegreeCentrality
	case MetricPageRank:
		return r.PageRankCentrality
	case MetricCost:
		return r.CombinedCost
	default:
		return r.CombinedImportance
	}
}

// Ranked is a (tool, score) pair, encoded as a two-element JSON array.
type Ranked struct {
	Tool  string
	Score float64
}

// MarshalJSON encodes the pair as [tool, score].
func (r Ranked) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{r.Tool, r.Score})
}

// UnmarshalJSON decodes a [tool, score] array.
func (r *Ranked) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("ranked entry has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &r.Tool); err != nil {
		return fmt.Errorf("ranked tool: %w", err)
	}
	if err := json.Unmarshal(pair[1], &r.Score); err != nil {
		return fmt.Errorf("ranked score: %w", err)
	}
	return nil
}

// Metadata describes how a table was produced.
type Metadata struct {
	GeneratedAt    time.Time `json:"generated_at"`
	Source         string    `json:"source"`
	TotalTasks     int       `json:"total_tasks"`
	TotalTemplates int       `json:"total_templates"`
	TotalTools     int       `json:"total_tools"`
	GraphNodes     int       `json:"graph_nodes"`
	GraphEdges     int       `json:"graph_edges"`
	BaseCost       float64   `json:"base_cost"`
	Alpha          float64   `json:"alpha"`
	Damping        float64   `json:"damping"`
	CorpusHash     string    `json:"corpus_hash,omitempty"`
	PageRankError  string    `json:"pagerank_error,omitempty"`
}

// topN is the length of the ranked lists stored alongside the scores.
const topN = 20

// Table maps tool ids to importance records.
type Table struct {
	Metadata    Metadata          `json:"analysis_metadata"`
	Scores      map[string]Record `json:"tool_importance_scores"`
	TopCombined []Ranked          `json:"top_tools_by_combined_importance"`
	TopOutDeg   []Ranked          `json:"top_tools_by_out_degree"`
	TopPageRank []Ranked          `json:"top_tools_by_pagerank"`
}

// Empty returns a table with no tools; every lookup yields UnknownToolCost.
func Empty() *Table {
	p := DefaultParams()
	return &Table{
		Metadata: Metadata{BaseCost: p.BaseCost, Alpha: p.Alpha, Damping: p.Damping},
		Scores:   map[string]Record{},
	}
}

// Compute derives the importance table for every node of g.
// A PageRank failure is logged and recorded in the metadata; centralities
// fall back to zero and the table is still returned.
func Compute(g *graph.TransitionGraph, p Params, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}

	t := &Table{
		Metadata: Metadata{
			GeneratedAt: time.Now().UTC(),
			GraphNodes:  g.NodeCount(),
			GraphEdges:  g.EdgeCount(),
			BaseCost:    p.BaseCost,
			Alpha:       p.Alpha,
			Damping:     p.Damping,
		},
		Scores: make(map[string]Record, g.NodeCount()),
	}

	maxOut := g.MaxOutDegree()
	if maxOut == 0 {
		maxOut = 1
	}

	pr, err := PageRank(g, p.Damping, p.MaxIterations, p.Tolerance)
	if err != nil {
		logger.Warn("pagerank failed, using zero centrality", "error", err)
		t.Metadata.PageRankError = err.Error()
		pr = map[string]float64{}
	}

	for _, tool := range g.Nodes() {
		od := float64(g.OutDegree(tool)) / float64(maxOut)
		rank := pr[tool]
		odCost := p.BaseCost * (1 + od)
		prCost := p.BaseCost * (1 + p.Alpha*rank)
		t.Scores[tool] = Record{
			OutDegreeCentrality: od,
			PageRankCentrality:  rank,
			OutDegreeCost:       odCost,
			PageRankCost:        prCost,
			CombinedImportance:  (od + rank) / 2,
			CombinedCost:        (odCost + prCost) / 2,
		}
	}
	t.Metadata.TotalTools = len(t.Scores)
	t.refreshRankings()

	logger.Debug("computed tool importance",
		"tools", t.Metadata.TotalTools, "edges", t.Metadata.GraphEdges)
	return t
}

func (t *Table) refreshRankings() {
	t.TopCombined = t.Top(topN, MetricImportance)
	t.TopOutDeg = t.Top(topN, MetricOutDegree)
	t.TopPageRank = t.Top(topN, MetricPageRank)
}

// Cost returns the combined cost of tool, or UnknownToolCost when it is not
// in the table. A nil table behaves as an empty one.
func (t *Table) Cost(tool string) float64 {
	if t == nil {
		return UnknownToolCost
	}
	if r, ok := t.Scores[tool]; ok {
		return r.CombinedCost
	}
	return UnknownToolCost
}

// Lookup returns the record for tool.
func (t *Table) Lookup(tool string) (Record, bool) {
	if t == nil {
		return Record{}, false
	}
	r, ok := t.Scores[tool]
	return r, ok
}

// Tools returns every tool in lexicographic order.
func (t *Table) Tools() []string {
	if t == nil {
		return nil
	}
	tools := make([]string, 0, len(t.Scores))
	for tool := range t.Scores {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	return tools
}

// Len returns the number of tools.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Scores)
}

// Top returns up to n tools sorted by m descending. Ties keep lexicographic order.
// n <= 0 returns every tool.
func (t *Table) Top(n int, m Metric) []Ranked {
	tools := t.Tools()
	ranked := make([]Ranked, 0, len(tools))
	for _, tool := range tools {
		ranked = append(ranked, Ranked{Tool: tool, Score: t.Scores[tool].Value(m)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
