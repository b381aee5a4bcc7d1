package main

import (
	"context"

	"github.com/flamingcow/layerlint/internal/lint"
)

// Dependency analysis types
type DependencyInfo struct {
	Layer        string     `json:"layer"`
	Dependencies []string   `json:"dependencies"`
	Dependents   []string   `json:"dependents,omitempty"`
	Cycles       [][]string `json:"cycles,omitempty"`
}

type DependencyGraph struct {
	Layers []DependencyInfo `json:"layers"`
	Edges  []lint.Edge      `json:"edges"`
	Cycles [][]string       `json:"cycles,omitempty"`
}

func (l *linter) analyzeDependencies(ctx context.Context, dir string) (*DependencyGraph, error) {
	policy, files, err := l.scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	edges := lint.Edges(policy, classified(files))
	graph := &DependencyGraph{
		Layers: []DependencyInfo{},
		Edges:  edges,
	}

	for _, cycle := range lint.Cycles(edges) {
		graph.Cycles = append(graph.Cycles, layerNames(cycle))
	}

	for _, layer := range policy.Layers() {
		info := DependencyInfo{
			Layer:        string(layer),
			Dependencies: []string{},
		}
		for _, e := range edges {
			if e.From == layer {
				info.Dependencies = append(info.Dependencies, string(e.To))
			}
			if e.To == layer {
				info.Dependents = append(info.Dependents, string(e.From))
			}
		}

		// A layer is in a cycle if it appears on one
		for _, cycle := range graph.Cycles {
			if contains(cycle, info.Layer) {
				info.Cycles = append(info.Cycles, cycle)
			}
		}

		graph.Layers = append(graph.Layers, info)
	}

	return graph, nil
}
