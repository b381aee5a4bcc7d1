package lint

import (
	"sort"

	"github.com/flamingcow/layerlint/internal/layers"
)

// Edge is an observed layer-to-layer import relationship.
type Edge struct {
	From    layers.Layer `json:"from"`
	To      layers.Layer `json:"to"`
	Imports int          `json:"imports"`
	Guarded int          `json:"guarded"`
	Allowed bool         `json:"allowed"`
}

// Edges aggregates the cross-layer imports of the classified files into a
// layer graph sorted by (From, To). Same-layer and external imports are not
// edges.
func Edges(policy *layers.Policy, files []FileImports) []Edge {
	type key struct{ from, to layers.Layer }
	byKey := map[key]*Edge{}

	for _, f := range files {
		if !f.Classified {
			continue
		}
		for _, imp := range f.Imports {
			top := imp.Top()
			if !policy.Known(top) || layers.Layer(top) == f.Layer {
				continue
			}
			k := key{f.Layer, layers.Layer(top)}
			e, ok := byKey[k]
			if !ok {
				e = &Edge{From: k.from, To: k.to, Allowed: policy.Allows(k.from, k.to)}
				byKey[k] = e
			}
			e.Imports++
			if imp.Guarded {
				e.Guarded++
			}
		}
	}

	edges := make([]Edge, 0, len(byKey))
	for _, e := range byKey {
		edges = append(edges, *e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// Graph returns the adjacency list of edges.
func Graph(edges []Edge) map[layers.Layer][]layers.Layer {
	g := map[layers.Layer][]layers.Layer{}
	for _, e := range edges {
		g[e.From] = append(g[e.From], e.To)
	}
	return g
}

// Cycles returns every elementary cycle reachable in the layer graph, each
// rotated to start at its smallest layer, without duplicates.
func Cycles(edges []Edge) [][]layers.Layer {
	graph := Graph(edges)

	nodes := make([]layers.Layer, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	var cycles [][]layers.Layer
	seen := map[string]bool{}
	onPath := map[layers.Layer]bool{}
	var path []layers.Layer

	var dfs func(n layers.Layer)
	dfs = func(n layers.Layer) {
		onPath[n] = true
		path = append(path, n)

		for _, next := range graph[n] {
			if onPath[next] {
				idx := 0
				for i, p := range path {
					if p == next {
						idx = i
						break
					}
				}
				cycle := canonical(path[idx:])
				id := cycleID(cycle)
				if !seen[id] {
					seen[id] = true
					cycles = append(cycles, cycle)
				}
				continue
			}
			dfs(next)
		}

		path = path[:len(path)-1]
		onPath[n] = false
	}

	for _, n := range nodes {
		dfs(n)
	}
	return cycles
}

func canonical(cycle []layers.Layer) []layers.Layer {
	lo := 0
	for i, n := range cycle {
		if n < cycle[lo] {
			lo = i
		}
	}
	out := make([]layers.Layer, 0, len(cycle))
	out = append(out, cycle[lo:]...)
	return append(out, cycle[:lo]...)
}

func cycleID(cycle []layers.Layer) string {
	id := ""
	for _, n := range cycle {
		id += string(n) + ">"
	}
	return id
}
