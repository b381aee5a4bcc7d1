package main

import (
	"context"
	"log/slog"

	"github.com/flamingcow/layerlint/internal/config"
	"github.com/flamingcow/layerlint/internal/layers"
	"github.com/flamingcow/layerlint/internal/lint"
	"github.com/flamingcow/layerlint/internal/metrics"
	"github.com/flamingcow/layerlint/internal/pysource"
)

// linter holds the state shared by every tool call for the lifetime of the
// server.
type linter struct {
	cfg       *config.Config
	extractor *pysource.CachedExtractor
	metrics   *metrics.Registry
	logger    *slog.Logger
}

func newLinter(cfg *config.Config, logger *slog.Logger) (*linter, error) {
	extractor, err := pysource.NewCachedExtractor(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &linter{
		cfg:       cfg,
		extractor: extractor,
		metrics:   metrics.NewRegistry(),
		logger:    logger,
	}, nil
}

// policy returns the policy at path, or the configured one when path is
// empty.
func (l *linter) policy(path string) (*layers.Policy, error) {
	if path == "" {
		return l.cfg.Policy()
	}
	return layers.LoadFile(path)
}

func (l *linter) checker(policy *layers.Policy) *lint.Checker {
	return &lint.Checker{
		Policy:    policy,
		Extractor: l.extractor,
		Workers:   l.cfg.Workers,
		Logger:    l.logger,
		Metrics:   l.metrics,
	}
}

// scan extracts every source file under dir, classified or not.
func (l *linter) scan(ctx context.Context, dir string) (*layers.Policy, []lint.FileImports, error) {
	policy, err := l.policy("")
	if err != nil {
		return nil, nil, err
	}
	files, err := l.checker(policy).Scan(ctx, dir, true)
	if err != nil {
		return nil, nil, err
	}
	return policy, files, nil
}

func classified(files []lint.FileImports) []lint.FileImports {
	var out []lint.FileImports
	for _, f := range files {
		if f.Classified {
			out = append(out, f)
		}
	}
	return out
}

func layerNames(ls []layers.Layer) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = string(l)
	}
	return out
}
