package main

import (
	"context"
	"fmt"

	"github.com/flamingcow/layerlint/internal/lint"
	"github.com/flamingcow/layerlint/internal/metrics"
)

// Architecture analysis types
type ArchitectureInfo struct {
	Shared      string              `json:"shared"`
	Policy      map[string][]string `json:"policy"`
	Layers      []LayerInfo         `json:"layers"`
	Violations  []lint.Violation    `json:"violations"`
	Warnings    []lint.Violation    `json:"warnings"`
	Suggestions []string            `json:"suggestions,omitempty"`
}

type LayerInfo struct {
	Name     string   `json:"name"`
	Files    int      `json:"files"`
	Allowed  []string `json:"allowed"`
	Observed []string `json:"observed"`
	Unused   []string `json:"unused,omitempty"`
}

func (l *linter) analyzeArchitecture(ctx context.Context, dir string) (*ArchitectureInfo, error) {
	policy, files, err := l.scan(ctx, dir)
	if err != nil {
		return nil, err
	}
	files = classified(files)
	edges := lint.Edges(policy, files)

	arch := &ArchitectureInfo{
		Shared:     string(policy.Shared()),
		Policy:     policy.Table(),
		Layers:     []LayerInfo{},
		Violations: []lint.Violation{},
		Warnings:   []lint.Violation{},
	}

	for _, f := range files {
		for _, imp := range f.Imports {
			v, verdict := lint.Evaluate(policy, f, imp)
			switch verdict {
			case metrics.VerdictViolation:
				arch.Violations = append(arch.Violations, v)
			case metrics.VerdictWarning:
				arch.Warnings = append(arch.Warnings, v)
			}
		}
	}

	for _, layer := range policy.Layers() {
		info := LayerInfo{
			Name:     string(layer),
			Allowed:  layerNames(policy.Allowed(layer)),
			Observed: []string{},
		}
		for _, f := range files {
			if f.Layer == layer {
				info.Files++
			}
		}
		for _, e := range edges {
			if e.From == layer {
				info.Observed = append(info.Observed, string(e.To))
			}
		}
		for _, allowed := range info.Allowed {
			if !contains(info.Observed, allowed) {
				info.Unused = append(info.Unused, allowed)
			}
		}
		arch.Layers = append(arch.Layers, info)
	}

	for _, e := range edges {
		if e.Allowed {
			continue
		}
		if e.Guarded == e.Imports {
			arch.Suggestions = append(arch.Suggestions, fmt.Sprintf(
				"%s/ -> %s/ is only imported conditionally; move the optional dependency behind an allowed layer", e.From, e.To))
			continue
		}
		arch.Suggestions = append(arch.Suggestions, fmt.Sprintf(
			"%s/ -> %s/ breaks the layer rules in %d import(s); invert the dependency or move the code", e.From, e.To, e.Imports-e.Guarded))
	}

	return arch, nil
}
