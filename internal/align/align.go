// Package align scores an agent trajectory against a reference trajectory
// with an importance-weighted edit distance.
package align

import (
	"context"
	"fmt"
	"math"

	"github.com/geoplan-bench/trajeval/internal/task"
	"github.com/geoplan-bench/trajeval/internal/telemetry"
)

// DefaultCostCeiling is the assumed upper bound of a per-token edit cost.
// It sets where equal-length dissimilar sequences bottom out near zero.
const DefaultCostCeiling = 1.5

// CostModel prices inserting or deleting a tool.
type CostModel interface {
	Cost(tool string) float64
}

// Similarity scores two tools in [0, 1].
type Similarity interface {
	Similarity(ctx context.Context, a, b string) float64
}

// OpKind identifies an edit operation.
type OpKind string

const (
	OpMatch      OpKind = "match"
	OpSubstitute OpKind = "substitute"
	OpDelete     OpKind = "delete"
	OpInsert     OpKind = "insert"
)

// Operation is one step of the edit script turning the agent flow into the reference.
type Operation struct {
	Kind      OpKind  `json:"op"`
	Agent     string  `json:"agent,omitempty"`
	Reference string  `json:"reference,omitempty"`
	Cost      float64 `json:"cost"`
}

// String renders the operation for reports.
func (o Operation) String() string {
	switch o.Kind {
	case OpMatch:
		return fmt.Sprintf("= %s", o.Agent)
	case OpSubstitute:
		return fmt.Sprintf("~ %s -> %s (%.3f)", o.Agent, o.Reference, o.Cost)
	case OpDelete:
		return fmt.Sprintf("- %s (%.3f)", o.Agent, o.Cost)
	default:
		return fmt.Sprintf("+ %s (%.3f)", o.Reference, o.Cost)
	}
}

// Result is the outcome of one alignment.
type Result struct {
	SimilarityScore float64     `json:"similarity_score"`
	RawCost         float64     `json:"raw_cost"`
	Operations      []Operation `json:"operations,omitempty"`
}

// Scorer aligns trajectories using a cost model and a similarity function.
// A Scorer is safe for concurrent use when its dependencies are.
type Scorer struct {
	costs   CostModel
	sim     Similarity
	ceiling float64
	metrics *telemetry.Metrics
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithCostCeiling overrides DefaultCostCeiling. Non-positive values are ignored.
func WithCostCeiling(c float64) Option {
	return func(s *Scorer) {
		if c > 0 {
			s.ceiling = c
		}
	}
}

// WithMetrics attaches alignment counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

// NewScorer creates a scorer.
func NewScorer(costs CostModel, sim Similarity, opts ...Option) *Scorer {
	s := &Scorer{costs: costs, sim: sim, ceiling: DefaultCostCeiling}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CostCeiling returns the per-token cost ceiling in effect.
func (s *Scorer) CostCeiling() float64 {
	return s.ceiling
}

// Align computes the minimum-cost edit script from agent to reference.
//
// The similarity score is 1 - cost/(max(m,n)*ceiling). It is not clamped and
// may be negative for alignments worse than the ceiling assumes. Two empty
// flows score 1.0.
func (s *Scorer) Align(ctx context.Context, agent, reference task.Trajectory) Result {
	m, n := len(agent), len(reference)

	del := make([]float64, m)
	for i, tool := range agent {
		del[i] = s.cost(tool)
	}
	ins := make([]float64, n)
	for j, tool := range reference {
		ins[j] = s.cost(tool)
	}

	d := make([][]float64, m+1)
	for i := range d {
		d[i] = make([]float64, n+1)
	}
	for i := 1; i <= m; i++ {
		d[i][0] = d[i-1][0] + del[i-1]
	}
	for j := 1; j <= n; j++ {
		d[0][j] = d[0][j-1] + ins[j-1]
	}

	sub := make([][]float64, m)
	for i := 1; i <= m; i++ {
		sub[i-1] = make([]float64, n)
		for j := 1; j <= n; j++ {
			a, b := agent[i-1], reference[j-1]
			if a == b {
				d[i][j] = d[i-1][j-1]
				continue
			}
			sc := 1 - s.similarity(ctx, a, b)
			sub[i-1][j-1] = sc
			d[i][j] = min(
				d[i-1][j-1]+sc,
				d[i-1][j]+del[i-1],
				d[i][j-1]+ins[j-1],
			)
		}
	}

	res := Result{RawCost: d[m][n], SimilarityScore: 1.0}
	if longest := max(m, n); longest > 0 {
		res.SimilarityScore = 1 - d[m][n]/(float64(longest)*s.ceiling)
	}
	res.Operations = backtrace(d, sub, del, ins, agent, reference)

	s.metrics.RecordAlignment(res.SimilarityScore)
	return res
}

func (s *Scorer) cost(tool string) float64 {
	if s.costs == nil {
		return 1.0
	}
	return s.costs.Cost(tool)
}

func (s *Scorer) similarity(ctx context.Context, a, b string) float64 {
	if s.sim == nil {
		return 0
	}
	v := s.sim.Similarity(ctx, a, b)
	if math.IsNaN(v) {
		return 0
	}
	return min(1, max(0, v))
}

const tieEps = 1e-9

// backtrace walks the filled table from (m, n) to (0, 0), preferring match,
// then substitute, delete and insert when several moves explain a cell.
func backtrace(d, sub [][]float64, del, ins []float64, agent, reference task.Trajectory) []Operation {
	i, j := len(agent), len(reference)
	ops := make([]Operation, 0, max(i, j))

	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && agent[i-1] == reference[j-1]:
			ops = append(ops, Operation{Kind: OpMatch, Agent: agent[i-1], Reference: reference[j-1]})
			i, j = i-1, j-1
		case i > 0 && j > 0 && near(d[i][j], d[i-1][j-1]+sub[i-1][j-1]):
			ops = append(ops, Operation{Kind: OpSubstitute, Agent: agent[i-1], Reference: reference[j-1], Cost: sub[i-1][j-1]})
			i, j = i-1, j-1
		case i > 0 && (j == 0 || near(d[i][j], d[i-1][j]+del[i-1])):
			ops = append(ops, Operation{Kind: OpDelete, Agent: agent[i-1], Cost: del[i-1]})
			i--
		default:
			ops = append(ops, Operation{Kind: OpInsert, Reference: reference[j-1], Cost: ins[j-1]})
			j--
		}
	}

	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	return ops
}

func near(a, b float64) bool {
	diff := a - b
	return diff < tieEps && diff > -tieEps
}
