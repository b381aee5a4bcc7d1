// Package lint checks every import of a Python project against a layer
// policy.
package lint

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	lerrors "github.com/flamingcow/layerlint/internal/errors"
	"github.com/flamingcow/layerlint/internal/layers"
	"github.com/flamingcow/layerlint/internal/metrics"
	"github.com/flamingcow/layerlint/internal/pysource"
	"github.com/flamingcow/layerlint/internal/scan"
)

// Violation is one import edge that the policy does not allow.
type Violation struct {
	File   string       `json:"file"`
	Line   int          `json:"line"`
	From   layers.Layer `json:"from"`
	To     layers.Layer `json:"to"`
	Module string       `json:"module"`
}

// Result holds the outcome of a check. Violations are unguarded disallowed
// imports; Warnings are disallowed imports inside an ImportError guard.
type Result struct {
	Violations []Violation `json:"violations"`
	Warnings   []Violation `json:"warnings"`
	Files      int         `json:"files"`
	Skipped    int         `json:"skipped"`
}

// Passed reports whether the result has no hard violations.
func (r *Result) Passed() bool {
	return len(r.Violations) == 0
}

// FileImports is the extraction result for one source file.
type FileImports struct {
	File       string            `json:"file"`
	Layer      layers.Layer      `json:"layer,omitempty"`
	Classified bool              `json:"classified"`
	Imports    []pysource.Import `json:"imports"`
	Error      string            `json:"error,omitempty"`
}

// Extractor returns the imports of one file.
type Extractor interface {
	ExtractFile(path string) ([]pysource.Import, error)
}

type extractFunc func(string) ([]pysource.Import, error)

func (f extractFunc) ExtractFile(path string) ([]pysource.Import, error) { return f(path) }

// Checker runs the policy over a source tree. The zero value uses the
// default policy, the uncached extractor and one worker per CPU.
type Checker struct {
	Policy    *layers.Policy
	Extractor Extractor
	Workers   int
	Logger    *slog.Logger
	Metrics   *metrics.Registry
}

// Check runs a Checker with default settings over root.
func Check(root string) (*Result, error) {
	return (&Checker{}).Check(context.Background(), root)
}

func (c *Checker) policy() *layers.Policy {
	if c.Policy == nil {
		return layers.Default()
	}
	return c.Policy
}

func (c *Checker) extractor() Extractor {
	if c.Extractor == nil {
		return extractFunc(pysource.ExtractFile)
	}
	return c.Extractor
}

func (c *Checker) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Checker) workers() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// Check walks root, extracts the imports of every classified file and
// evaluates each one against the policy. Records come out in walk order,
// then source order.
func (c *Checker) Check(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	policy := c.policy()

	files, skipped, err := c.scan(ctx, root, false)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Violations: []Violation{},
		Warnings:   []Violation{},
		Files:      len(files),
		Skipped:    skipped,
	}

	for _, f := range files {
		c.Metrics.RecordFile(string(f.Layer))
		for _, imp := range f.Imports {
			v, verdict := Evaluate(policy, f, imp)
			c.Metrics.RecordEdge(verdict)

			switch verdict {
			case metrics.VerdictViolation:
				res.Violations = append(res.Violations, v)
			case metrics.VerdictWarning:
				res.Warnings = append(res.Warnings, v)
			}
		}
	}

	c.Metrics.RecordRun(len(res.Violations), time.Since(start))
	c.logger().Info("check complete",
		"root", root,
		"files", res.Files,
		"skipped", res.Skipped,
		"violations", len(res.Violations),
		"warnings", len(res.Warnings))

	return res, nil
}

// Evaluate classifies one import of f and builds its record.
func Evaluate(policy *layers.Policy, f FileImports, imp pysource.Import) (Violation, string) {
	top := imp.Top()
	if !policy.Known(top) {
		return Violation{}, metrics.VerdictExternal
	}

	to := layers.Layer(top)
	if policy.Permits(f.Layer, to) {
		if to == f.Layer {
			return Violation{}, metrics.VerdictSameLayer
		}
		return Violation{}, metrics.VerdictAllowed
	}

	v := Violation{
		File:   f.File,
		Line:   imp.Line,
		From:   f.Layer,
		To:     to,
		Module: imp.Module,
	}
	if imp.Guarded {
		return v, metrics.VerdictWarning
	}
	return v, metrics.VerdictViolation
}

// Scan extracts the imports of the files under root. Unclassified files are
// included only when all is true.
func (c *Checker) Scan(ctx context.Context, root string, all bool) ([]FileImports, error) {
	files, _, err := c.scan(ctx, root, all)
	return files, err
}

func (c *Checker) scan(ctx context.Context, root string, all bool) ([]FileImports, int, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, 0, lerrors.New(lerrors.ENotDirectory, fmt.Sprintf("'%s' is not a directory.", root))
	}
	// WalkDir does not descend through a symlinked root.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	paths, err := scan.Discover(root)
	if err != nil {
		return nil, 0, lerrors.Wrap(lerrors.EScanFailed, "failed to walk "+root, err)
	}

	policy := c.policy()
	log := c.logger()

	var (
		out     []FileImports
		targets []string
		skipped int
	)
	for _, p := range paths {
		layer, ok := scan.Classify(p, root, policy)
		if !ok {
			skipped++
			log.Debug("skipping unclassified file", "file", p)
			if !all {
				continue
			}
		}
		out = append(out, FileImports{File: scan.Rel(root, p), Layer: layer, Classified: ok})
		targets = append(targets, p)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())
	extract := c.extractor()

	for i, p := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			imports, err := extract.ExtractFile(p)
			if err != nil {
				reason := pysource.Reason(err)
				c.Metrics.RecordParseFailure(reason)
				log.Debug("no imports extracted", "file", p, "reason", reason, "error", err)
				out[i].Error = err.Error()
				imports = []pysource.Import{}
			}
			out[i].Imports = imports
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, lerrors.Wrap(lerrors.EScanFailed, "scan cancelled", err)
	}
	if out == nil {
		out = []FileImports{}
	}
	return out, skipped, nil
}
