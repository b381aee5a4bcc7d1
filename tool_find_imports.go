package main

import (
	"context"

	"github.com/flamingcow/layerlint/internal/lint"
)

// Import analysis types
type ImportInfo struct {
	File       string         `json:"file"`
	Layer      string         `json:"layer,omitempty"`
	Classified bool           `json:"classified"`
	Imports    []ImportDetail `json:"imports"`
	Error      string         `json:"error,omitempty"`
}

type ImportDetail struct {
	Module  string `json:"module"`
	Line    int    `json:"line"`
	Guarded bool   `json:"guarded"`
	Target  string `json:"target_layer,omitempty"`
	Verdict string `json:"verdict,omitempty"`
}

func (l *linter) findImports(ctx context.Context, dir string) ([]ImportInfo, error) {
	policy, files, err := l.scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	imports := []ImportInfo{}
	for _, f := range files {
		info := ImportInfo{
			File:       f.File,
			Layer:      string(f.Layer),
			Classified: f.Classified,
			Imports:    []ImportDetail{},
			Error:      f.Error,
		}

		for _, imp := range f.Imports {
			detail := ImportDetail{
				Module:  imp.Module,
				Line:    imp.Line,
				Guarded: imp.Guarded,
			}
			if policy.Known(imp.Top()) {
				detail.Target = imp.Top()
			}
			// Verdicts only make sense for files that belong to a layer.
			if f.Classified {
				_, detail.Verdict = lint.Evaluate(policy, f, imp)
			}
			info.Imports = append(info.Imports, detail)
		}

		imports = append(imports, info)
	}

	return imports, nil
}
