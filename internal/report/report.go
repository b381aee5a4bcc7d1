// Package report renders lint results as the human-readable text report.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/flamingcow/layerlint/internal/lint"
)

var (
	heavyRule = strings.Repeat("=", 60)
	lightRule = strings.Repeat("─", 56)
)

// Write renders violations, then warnings, then a summary line to w.
func Write(w io.Writer, violations, warnings []lint.Violation) error {
	var b strings.Builder

	if len(violations) > 0 {
		fmt.Fprintf(&b, "\n%s\n", heavyRule)
		fmt.Fprintf(&b, "  VIOLATIONS: %d dependency rule(s) broken\n", len(violations))
		fmt.Fprintf(&b, "%s\n\n", heavyRule)
		for _, v := range violations {
			fmt.Fprintf(&b, "  [ERROR] %s:%d\n", v.File, v.Line)
			fmt.Fprintf(&b, "          %s/ -> %s/ (import %s)\n\n", v.From, v.To, v.Module)
		}
	} else {
		b.WriteString("\n  All dependency rules passed.\n")
	}

	if len(warnings) > 0 {
		fmt.Fprintf(&b, "\n  WARNINGS: %d conditional import(s) (try/except)\n", len(warnings))
		fmt.Fprintf(&b, "  %s\n\n", lightRule)
		for _, v := range warnings {
			fmt.Fprintf(&b, "  [WARN] %s:%d\n", v.File, v.Line)
			fmt.Fprintf(&b, "         %s/ -> %s/ (import %s)\n\n", v.From, v.To, v.Module)
		}
	}

	fmt.Fprintf(&b, "\n  Summary: %d error(s), %d warning(s)\n", len(violations), len(warnings))

	_, err := io.WriteString(w, b.String())
	return err
}

// Header returns the line printed before a report.
func Header(absRoot string) string {
	return fmt.Sprintf("\n  Linting dependencies in: %s\n", absRoot)
}

// ExitCode is 1 when there are hard violations and 0 otherwise. Warnings
// never fail a run.
func ExitCode(violations []lint.Violation) int {
	if len(violations) > 0 {
		return 1
	}
	return 0
}
