// Package cli runs the layerlint command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flamingcow/layerlint/internal/config"
	"github.com/flamingcow/layerlint/internal/errors"
	"github.com/flamingcow/layerlint/internal/lint"
	"github.com/flamingcow/layerlint/internal/report"
)

// Run lints the project root named by the first argument, defaulting to
// the working directory, and writes the report to stdout. It returns the
// process exit code for a completed run, or an error when no report could
// be produced.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) (int, error) {
	arg := "."
	if len(args) > 0 {
		arg = args[0]
	}

	info, err := os.Stat(arg)
	if err != nil || !info.IsDir() {
		return 1, errors.New(errors.ENotDirectory, fmt.Sprintf("'%s' is not a directory.", arg))
	}

	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		return 1, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return 1, err
	}

	checker := &lint.Checker{
		Policy:  policy,
		Workers: cfg.Workers,
		Logger:  cfg.Logger(stderr),
	}

	fmt.Fprint(stdout, report.Header(resolve(arg)))

	res, err := checker.Check(ctx, arg)
	if err != nil {
		return 1, err
	}
	if err := report.Write(stdout, res.Violations, res.Warnings); err != nil {
		return 1, err
	}
	return report.ExitCode(res.Violations), nil
}

// resolve returns the absolute, symlink-free form of path where possible.
func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
