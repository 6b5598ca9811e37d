package importance

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/geoplan-bench/trajeval/internal/graph"
)

// ErrPageRankNotConverged is returned when power iteration exhausts its budget.
var ErrPageRankNotConverged = errors.New("pagerank did not converge")

// PageRank computes weighted PageRank by power iteration.
//
// Transition probability u->v is w(u,v)/sum(w(u,.)). Dangling nodes spread their
// mass uniformly and teleportation is uniform. Iteration stops once the L1
// change drops below n*tol.
func PageRank(g *graph.TransitionGraph, damping float64, maxIter int, tol float64) (map[string]float64, error) {
	nodes := g.Nodes()
	n := len(nodes)
	if n == 0 {
		return map[string]float64{}, nil
	}

	index := make(map[string]int, n)
	for i, v := range nodes {
		index[v] = i
	}

	type link struct {
		to int
		p  float64
	}
	out := make([][]link, n)
	var dangling []int
	for i, v := range nodes {
		total := float64(g.OutWeight(v))
		if total == 0 {
			dangling = append(dangling, i)
			continue
		}
		for _, s := range g.Successors(v) {
			out[i] = append(out[i], link{to: index[s], p: float64(g.Weight(v, s)) / total})
		}
	}

	uniform := 1.0 / float64(n)
	x := make([]float64, n)
	for i := range x {
		x[i] = uniform
	}
	last := make([]float64, n)

	for iter := 0; iter < maxIter; iter++ {
		copy(last, x)
		for i := range x {
			x[i] = 0
		}

		danglingSum := 0.0
		for _, i := range dangling {
			danglingSum += last[i]
		}
		danglingSum *= damping

		for i, links := range out {
			for _, l := range links {
				x[l.to] += damping * last[i] * l.p
			}
		}
		base := danglingSum*uniform + (1-damping)*uniform
		for i := range x {
			x[i] += base
		}

		if floats.Distance(x, last, 1) < float64(n)*tol {
			scores := make(map[string]float64, n)
			for i, v := range nodes {
				scores[v] = x[i]
			}
			return scores, nil
		}
	}
	return nil, fmt.Errorf("%w after %d iterations", ErrPageRankNotConverged, maxIter)
}
