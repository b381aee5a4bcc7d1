// Package pysource extracts import statements from Python source files.
//
// The parser is deliberately shallow: it tokenizes Python, rebuilds the
// block structure from indentation and keeps only what import analysis
// needs (import statements and try statements with their line ranges).
// An import is guarded when its line falls inside the line range of a try
// statement that has a handler catching ImportError; the check is textual
// line containment, not scope analysis.
package pysource

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"
)

// Import is one imported module found in a source file.
type Import struct {
	Module  string `json:"module"`
	Line    int    `json:"line"`
	Guarded bool   `json:"guarded"`
}

// Top returns the first segment of the dotted module path.
func (i Import) Top() string {
	top, _, _ := strings.Cut(i.Module, ".")
	return top
}

// ErrDecode is returned for files that are not valid UTF-8.
var ErrDecode = errors.New("source is not valid UTF-8")

// ExtractFile reads path and parses its imports. Callers that treat a bad
// file as having no imports use Reason to label the failure.
func ExtractFile(path string) ([]Import, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(src)
}

// Parse returns the imports declared in src, in source order.
func Parse(src []byte) ([]Import, error) {
	if !utf8.Valid(src) {
		return nil, ErrDecode
	}

	lines, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	tree, err := parseStatements(lines)
	if err != nil {
		return nil, err
	}

	var c collector
	if err := c.walk(tree); err != nil {
		return nil, err
	}

	for i := range c.imports {
		c.imports[i].Guarded = c.guarded(c.imports[i].Line)
	}
	if c.imports == nil {
		c.imports = []Import{}
	}
	return c.imports, nil
}

// Reason classifies an extraction error for logs and metrics.
func Reason(err error) string {
	var synErr *SyntaxError
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.As(err, &synErr):
		return "syntax"
	case errors.As(err, &pathErr):
		return "read"
	default:
		return "other"
	}
}

type lineRange struct {
	start, end int
}

type collector struct {
	imports []Import
	guards  []lineRange
}

func (c *collector) walk(stmts []*stmt) error {
	for _, s := range stmts {
		switch {
		case s.keyword == "try":
			if !s.star && anyHandlerCatchesImportError(s.clauses) {
				c.guards = append(c.guards, lineRange{s.start, s.end})
			}
			for _, cl := range s.clauses {
				if err := c.walk(cl.body); err != nil {
					return err
				}
			}
		case s.keyword != "":
			if err := c.walk(s.body); err != nil {
				return err
			}
		default:
			if err := c.simple(s.tokens); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *collector) guarded(line int) bool {
	for _, g := range c.guards {
		if g.start <= line && line <= g.end {
			return true
		}
	}
	return false
}

func (c *collector) simple(toks []token) error {
	switch {
	case toks[0].is(tokName, "import"):
		modules, err := parseImport(toks)
		if err != nil {
			return err
		}
		for _, m := range modules {
			c.imports = append(c.imports, Import{Module: m, Line: toks[0].line})
		}
	case toks[0].is(tokName, "from"):
		module, err := parseFromImport(toks)
		if err != nil {
			return err
		}
		if module != "" {
			c.imports = append(c.imports, Import{Module: module, Line: toks[0].line})
		}
	}
	return nil
}

// parseImport parses "import a.b [as c], d ..." and returns the dotted names.
func parseImport(toks []token) ([]string, error) {
	var modules []string
	i := 1
	for {
		name, next, err := dottedName(toks, i)
		if err != nil {
			return nil, err
		}
		modules = append(modules, name)
		i = next

		if i < len(toks) && toks[i].is(tokName, "as") {
			if i+1 >= len(toks) || toks[i+1].kind != tokName {
				return nil, syntaxErr(toks[i].line, "invalid syntax")
			}
			i += 2
		}
		if i == len(toks) {
			return modules, nil
		}
		if !toks[i].is(tokOp, ",") {
			return nil, syntaxErr(toks[i].line, "invalid syntax")
		}
		i++
	}
}

// parseFromImport parses "from [.]*[a.b] import ..." and returns the module
// path without its leading dots. Purely relative imports return "".
func parseFromImport(toks []token) (string, error) {
	i := 1
	dots := 0
	for i < len(toks) && toks[i].kind == tokOp && (toks[i].text == "." || toks[i].text == "...") {
		dots += len(toks[i].text)
		i++
	}

	module := ""
	if i < len(toks) && !toks[i].is(tokName, "import") {
		name, next, err := dottedName(toks, i)
		if err != nil {
			return "", err
		}
		module, i = name, next
	}
	if module == "" && dots == 0 {
		return "", syntaxErr(toks[0].line, "invalid syntax")
	}

	if i >= len(toks) || !toks[i].is(tokName, "import") {
		return "", syntaxErr(toks[0].line, "invalid syntax")
	}
	if err := importTargets(toks[i+1:], toks[i].line); err != nil {
		return "", err
	}
	return module, nil
}

// importTargets validates the names after "from x import".
func importTargets(toks []token, line int) error {
	if len(toks) == 1 && toks[0].is(tokOp, "*") {
		return nil
	}

	parens := len(toks) > 0 && toks[0].is(tokOp, "(")
	if parens {
		if !toks[len(toks)-1].is(tokOp, ")") {
			return syntaxErr(line, "invalid syntax")
		}
		toks = toks[1 : len(toks)-1]
	}
	if len(toks) == 0 {
		return syntaxErr(line, "invalid syntax")
	}

	for i := 0; i < len(toks); {
		if toks[i].kind != tokName {
			return syntaxErr(toks[i].line, "invalid syntax")
		}
		i++
		if i+1 < len(toks) && toks[i].is(tokName, "as") {
			if toks[i+1].kind != tokName {
				return syntaxErr(toks[i].line, "invalid syntax")
			}
			i += 2
		}
		if i == len(toks) {
			return nil
		}
		if !toks[i].is(tokOp, ",") {
			return syntaxErr(toks[i].line, "invalid syntax")
		}
		i++
		if i == len(toks) {
			if parens {
				return nil
			}
			return syntaxErr(toks[i-1].line, "trailing comma not allowed without surrounding parentheses")
		}
	}
	return nil
}

// dottedName reads NAME ("." NAME)* starting at toks[i].
func dottedName(toks []token, i int) (string, int, error) {
	if i >= len(toks) || toks[i].kind != tokName {
		line := toks[len(toks)-1].line
		if i < len(toks) {
			line = toks[i].line
		}
		return "", 0, syntaxErr(line, "invalid syntax")
	}

	parts := []string{toks[i].text}
	i++
	for i+1 < len(toks) && toks[i].is(tokOp, ".") && toks[i+1].kind == tokName {
		parts = append(parts, toks[i+1].text)
		i += 2
	}
	if i < len(toks) && toks[i].is(tokOp, ".") {
		return "", 0, syntaxErr(toks[i].line, "invalid syntax")
	}
	return strings.Join(parts, "."), i, nil
}
