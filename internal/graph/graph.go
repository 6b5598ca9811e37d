// Package graph builds weighted tool-transition graphs from observed trajectories.
package graph

import (
	"sort"

	"github.com/geoplan-bench/trajeval/internal/task"
)

// Edge is a directed transition between two tools with its observed count.
type Edge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Weight int    `json:"weight"`
}

// TransitionGraph is a directed multigraph collapsed into integer edge weights.
// Self-loops are allowed. The graph is immutable once built.
type TransitionGraph struct {
	succ  map[string]map[string]int
	nodes []string
}

// Build aggregates consecutive tool pairs from every flow into a transition graph.
// Pairs with a null entry on either side are skipped. Nodes are registered only
// through edges, so a flow with a single tool contributes nothing.
func Build(flows []task.Trajectory) *TransitionGraph {
	g := &TransitionGraph{succ: make(map[string]map[string]int)}
	seen := make(map[string]bool)

	for _, flow := range flows {
		for i := 0; i+1 < len(flow); i++ {
			from, to := flow[i], flow[i+1]
			if from == "" || to == "" {
				continue
			}
			out, ok := g.succ[from]
			if !ok {
				out = make(map[string]int)
				g.succ[from] = out
			}
			out[to]++
			seen[from] = true
			seen[to] = true
		}
	}

	g.nodes = make([]string, 0, len(seen))
	for n := range seen {
		g.nodes = append(g.nodes, n)
	}
	sort.Strings(g.nodes)
	return g
}

// FromEdges assembles a graph from explicit nodes and weighted edges.
// Edge endpoints are added as nodes; extra nodes may be isolated.
// Non-positive weights are ignored.
func FromEdges(nodes []string, edges []Edge) *TransitionGraph {
	g := &TransitionGraph{succ: make(map[string]map[string]int)}
	seen := make(map[string]bool)
	for _, n := range nodes {
		if n != "" {
			seen[n] = true
		}
	}
	for _, e := range edges {
		if e.From == "" || e.To == "" || e.Weight <= 0 {
			continue
		}
		out, ok := g.succ[e.From]
		if !ok {
			out = make(map[string]int)
			g.succ[e.From] = out
		}
		out[e.To] += e.Weight
		seen[e.From] = true
		seen[e.To] = true
	}
	g.nodes = make([]string, 0, len(seen))
	for n := range seen {
		g.nodes = append(g.nodes, n)
	}
	sort.Strings(g.nodes)
	return g
}

// Nodes returns every tool in lexicographic order.
func (g *TransitionGraph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// NodeCount returns the number of distinct tools.
func (g *TransitionGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of distinct (from, to) pairs.
func (g *TransitionGraph) EdgeCount() int {
	n := 0
	for _, out := range g.succ {
		n += len(out)
	}
	return n
}

// Edges returns every edge sorted by (from, to).
func (g *TransitionGraph) Edges() []Edge {
	edges := make([]Edge, 0, g.EdgeCount())
	for _, from := range g.nodes {
		for _, to := range g.Successors(from) {
			edges = append(edges, Edge{From: from, To: to, Weight: g.succ[from][to]})
		}
	}
	return edges
}

// Weight returns the number of observed from->to transitions.
func (g *TransitionGraph) Weight(from, to string) int {
	return g.succ[from][to]
}

// Successors returns the distinct successors of v in lexicographic order.
func (g *TransitionGraph) Successors(v string) []string {
	out := g.succ[v]
	succ := make([]string, 0, len(out))
	for to := range out {
		succ = append(succ, to)
	}
	sort.Strings(succ)
	return succ
}

// OutDegree counts distinct successors of v. A self-loop counts once.
func (g *TransitionGraph) OutDegree(v string) int {
	return len(g.succ[v])
}

// OutWeight sums the weights of all edges leaving v.
func (g *TransitionGraph) OutWeight(v string) int {
	total := 0
	for _, w := range g.succ[v] {
		total += w
	}
	return total
}

// MaxOutDegree returns the largest out-degree in the graph, or 0 when it has no edges.
func (g *TransitionGraph) MaxOutDegree() int {
	best := 0
	for _, out := range g.succ {
		best = max(best, len(out))
	}
	return best
}
