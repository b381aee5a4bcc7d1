package main

import (
	"context"

	"github.com/flamingcow/layerlint/internal/lint"
)

// Coupling analysis types
type CouplingInfo struct {
	Layer        string   `json:"layer"`
	Files        int      `json:"files"`
	Afferent     int      `json:"afferent"`
	Efferent     int      `json:"efferent"`
	Instability  float64  `json:"instability"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

func (l *linter) analyzeCoupling(ctx context.Context, dir string) ([]CouplingInfo, error) {
	policy, files, err := l.scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, f := range classified(files) {
		counts[string(f.Layer)]++
	}

	edges := lint.Edges(policy, classified(files))
	coupling := []CouplingInfo{}

	for _, layer := range policy.Layers() {
		info := CouplingInfo{
			Layer:        string(layer),
			Files:        counts[string(layer)],
			Dependencies: []string{},
			Dependents:   []string{},
		}
		for _, e := range edges {
			if e.From == layer {
				info.Dependencies = append(info.Dependencies, string(e.To))
			}
			if e.To == layer {
				info.Dependents = append(info.Dependents, string(e.From))
			}
		}
		info.Efferent = len(info.Dependencies)
		info.Afferent = len(info.Dependents)

		// Calculate instability (Ce / (Ca + Ce))
		if info.Afferent+info.Efferent > 0 {
			info.Instability = float64(info.Efferent) / float64(info.Afferent+info.Efferent)
		}

		if info.Afferent > 0 && info.Instability > 0.5 {
			info.Suggestions = append(info.Suggestions,
				"layer is depended on but mostly depends outward; consider moving shared code into a lower layer")
		}

		coupling = append(coupling, info)
	}

	return coupling, nil
}
