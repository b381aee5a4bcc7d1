package main

import (
	"context"

	"github.com/flamingcow/layerlint/internal/errors"
	"github.com/flamingcow/layerlint/internal/lint"
)

type LintReport struct {
	Root   string `json:"root"`
	Passed bool   `json:"passed"`
	*lint.Result
}

// lintLayers checks dir against the policy file at policyPath, or the
// configured policy when policyPath is empty.
func (l *linter) lintLayers(ctx context.Context, dir, policyPath string) (*LintReport, error) {
	policy, err := l.policy(policyPath)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.EInvalidPolicy, "failed to load policy "+policyPath, err)
		}
		return nil, err
	}

	res, err := l.checker(policy).Check(ctx, dir)
	if err != nil {
		return nil, err
	}

	return &LintReport{
		Root:   dir,
		Passed: res.Passed(),
		Result: res,
	}, nil
}
