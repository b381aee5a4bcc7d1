package pysource

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func src(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func mustParse(t *testing.T, b []byte) []Import {
	t.Helper()
	imports, err := Parse(b)
	require.NoError(t, err)
	return imports
}

func TestParseImportForms(t *testing.T) {
	got := mustParse(t, src(
		"import os",
		"import core.state, nodes.x as nx",
		"from graphs.main import build",
		"from . import sibling",
		"from ..memory.store import Store",
		"from __future__ import annotations",
		"from ...a.b import (c as d, e,)",
		"from x import *",
	))

	assert.Equal(t, []Import{
		{Module: "os", Line: 1},
		{Module: "core.state", Line: 2},
		{Module: "nodes.x", Line: 2},
		{Module: "graphs.main", Line: 3},
		{Module: "memory.store", Line: 5},
		{Module: "__future__", Line: 6},
		{Module: "a.b", Line: 7},
		{Module: "x", Line: 8},
	}, got)
}

func TestParseIgnoresStringsAndComments(t *testing.T) {
	got := mustParse(t, src(
		`"""Module docstring.`,
		``,
		`import graphs.main`,
		`"""`,
		`# import core.state`,
		`s = "import tools.x"`,
		`t = 'from nodes import y'`,
		`b = rb'\x00import'`,
		`import core  # import nodes`,
	))

	assert.Equal(t, []Import{{Module: "core", Line: 9}}, got)
}

func TestParseMultilineStatements(t *testing.T) {
	got := mustParse(t, src(
		"from core.state import \\",
		"    State",
		"from nodes.reasoning import (",
		"    plan,",
		"    act,",
		")",
		"import a; import b",
		"x = [",
		"  1,  # comment inside brackets",
		"]",
		"import c",
	))

	assert.Equal(t, []Import{
		{Module: "core.state", Line: 1},
		{Module: "nodes.reasoning", Line: 3},
		{Module: "a", Line: 7},
		{Module: "b", Line: 7},
		{Module: "c", Line: 11},
	}, got)
}

func TestParseNestedImportsInSourceOrder(t *testing.T) {
	got := mustParse(t, src(
		"import a",
		"",
		"class C:",
		"    import b",
		"",
		"    def f(self, x: int = 3) -> dict[str, int]:",
		"        if x:",
		"            import c",
		"        elif x > 1: import d",
		"        else:",
		"            import e",
		"        for i in range(3):",
		"            pass",
		"        else:",
		"            import f",
		"",
		"async def g():",
		"    async with lock:",
		"        import h",
		"import i",
	))

	var mods []string
	for _, imp := range got {
		mods = append(mods, imp.Module)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "h", "i"}, mods)
	assert.Equal(t, 20, got[len(got)-1].Line)
}

func TestParseMatchStatement(t *testing.T) {
	got := mustParse(t, src(
		"match = 1",
		"match command:",
		"    case \"go\":",
		"        import tools.x",
		"    case {\"k\": v}: import tools.y",
		"    case _:",
		"        pass",
	))

	assert.Equal(t, []Import{
		{Module: "tools.x", Line: 4},
		{Module: "tools.y", Line: 5},
	}, got)
}

func TestGuardedImports(t *testing.T) {
	tests := []struct {
		name    string
		source  []byte
		guarded bool
	}{
		{
			name:    "except ImportError",
			source:  src("try:", "    import graphs.main", "except ImportError:", "    pass"),
			guarded: true,
		},
		{
			name:    "bare except",
			source:  src("try:", "    import graphs.main", "except:", "    pass"),
			guarded: true,
		},
		{
			name:    "except ImportError as alias",
			source:  src("try:", "    import graphs.main", "except ImportError as e:", "    raise"),
			guarded: true,
		},
		{
			name:    "tuple containing ImportError",
			source:  src("try:", "    import graphs.main", "except (ValueError, ImportError):", "    pass"),
			guarded: true,
		},
		{
			name:    "single element tuple",
			source:  src("try:", "    import graphs.main", "except (ImportError,):", "    pass"),
			guarded: true,
		},
		{
			name:    "parenthesized name",
			source:  src("try:", "    import graphs.main", "except (ImportError):", "    pass"),
			guarded: true,
		},
		{
			name:    "second handler catches",
			source:  src("try:", "    import graphs.main", "except ValueError:", "    pass", "except ImportError:", "    pass"),
			guarded: true,
		},
		{
			name:    "inline suites",
			source:  src("try: import graphs.main", "except ImportError: graphs = None"),
			guarded: true,
		},
		{
			name:    "except Exception",
			source:  src("try:", "    import graphs.main", "except Exception:", "    pass"),
			guarded: false,
		},
		{
			name:    "ModuleNotFoundError is not ImportError",
			source:  src("try:", "    import graphs.main", "except ModuleNotFoundError:", "    pass"),
			guarded: false,
		},
		{
			name:    "dotted name",
			source:  src("try:", "    import graphs.main", "except builtins.ImportError:", "    pass"),
			guarded: false,
		},
		{
			name:    "nested tuple",
			source:  src("try:", "    import graphs.main", "except ((ImportError, KeyError), ValueError):", "    pass"),
			guarded: false,
		},
		{
			name:    "try finally",
			source:  src("try:", "    import graphs.main", "finally:", "    pass"),
			guarded: false,
		},
		{
			name:    "except star",
			source:  src("try:", "    import graphs.main", "except* ImportError:", "    pass"),
			guarded: false,
		},
		{
			name:    "no try",
			source:  src("import graphs.main"),
			guarded: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.source)
			require.Len(t, got, 1)
			assert.Equal(t, "graphs.main", got[0].Module)
			assert.Equal(t, tt.guarded, got[0].Guarded)
		})
	}
}

func TestGuardIsLineRangeContainment(t *testing.T) {
	got := mustParse(t, src(
		"try:",                             // 1
		"    import a",                     // 2
		"except ImportError:",              // 3
		"    import b",                     // 4
		"else:",                            // 5
		"    import c",                     // 6
		"finally:",                         // 7
		"    x = '''",                      // 8
		"    '''",                          // 9
		"import d",                         // 10
		"def f():",                         // 11
		"    try:",                         // 12
		"        pass",                     // 13
		"    except:",                      // 14
		"        pass",                     // 15
		"    import e",                     // 16
		"    try:",                         // 17
		"        def g():",                 // 18
		"            import f",             // 19
		"    except Exception:",            // 20
		"        try: import g",            // 21
		"        except ImportError: pass", // 22
	))

	guarded := map[string]bool{}
	for _, imp := range got {
		guarded[imp.Module] = imp.Guarded
	}
	assert.Equal(t, map[string]bool{
		"a": true,
		"b": true,
		"c": true,
		"d": false,
		"e": false,
		"f": false,
		"g": true,
	}, guarded)
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"bare import", "import\n"},
		{"unclosed paren", "def f(:\n    pass\n"},
		{"mismatched bracket", "x = (1]\n"},
		{"unmatched closer", "x = 1)\n"},
		{"missing colon", "if x\n    pass\n"},
		{"unexpected indent", "  import a\n"},
		{"missing block", "if x:\nimport a\n"},
		{"missing block at eof", "def f():\n"},
		{"inconsistent dedent", "if x:\n        a = 1\n    b = 2\n"},
		{"unterminated string", "x = 'abc\n"},
		{"unterminated triple string", "x = '''abc\n"},
		{"orphan except", "except ImportError:\n    pass\n"},
		{"orphan else", "x = 1\nelse:\n    pass\n"},
		{"try without handler", "try:\n    pass\nx = 1\n"},
		{"mixed except star", "try:\n    pass\nexcept* A:\n    pass\nexcept B:\n    pass\n"},
		{"from without import", "from x\n"},
		{"from import without module", "from import x\n"},
		{"from import without names", "from x import\n"},
		{"trailing dot", "import a.\n"},
		{"trailing comma", "from x import a,\n"},
		{"continuation at eof", "x = 1 \\"},
		{"invalid character", "x = $\n"},
		{"empty statement", "x = 1;;\n"},
		{"compound in inline suite", "if x: for y in z: pass\n"},
		{"py2 print", "import graphs.main\nprint \"hello\"\n"},
		{"py2 exec", "exec code\n"},
		{"call followed by name", "f() g\n"},
		{"long suffix", "x = 1L\n"},
		{"juxtaposed names in header", "if a b:\n    pass\n"},
		{"double equals", "import graphs.main\nx = = 1\n"},
		{"unclosed f-string field", "x = f'{a'\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.source))
			var synErr *SyntaxError
			require.True(t, errors.As(err, &synErr), "want SyntaxError, got %v", err)
			assert.Equal(t, "syntax", Reason(err))
		})
	}
}

func TestParseAcceptsValidEdgeCases(t *testing.T) {
	tests := []string{
		"",
		"# only a comment\n",
		"\n\n\n",
		"x = 1;\n",
		"if x: pass\nelse: pass\n",
		"while chunk := read():\n    pass\n",
		"f = lambda: 1\n",
		"d = {'a': lambda x: x}\n",
		"for x in a[1:2]:\n\tpass\n",
		"class A(B, metaclass=M): pass\n",
		"@decorator\ndef f(): pass\n",
		"x = 1e-5 + 0x1f + 1_000 + .5j\n",
		"s = f'{x!r:>10}'\n",
		"with open(a) as f, open(b) as g:\n    pass\n",
		"import a\r\nimport b\r\n",
		"\ufeffimport a\n",
		"if True:\n    x = (\n1)\n",
		"x = 'a\\\nb'\n",
		"s = 'a' 'b' f'{c}'\n",
		"x = 1if y else 0\n",
		"x = None if y is not None else True\n",
		"type Point = tuple[float, float]\n",
		"match command.split():\n    case [action, obj]:\n        pass\n    case _:\n        pass\n",
		"print(f(x) [0])\n",
		"s = f'{{literal}} {x:>{width}} {\"}\"}'\n",
		"async def f():\n    await g()\n",
		"x = lambda a, b=1: a\n",
		"def f(x) -> 'A': pass\n",
	}

	for _, s := range tests {
		_, err := Parse([]byte(s))
		assert.NoError(t, err, "source %q", s)
	}
}

func TestParseNestedFStrings(t *testing.T) {
	imports := mustParse(t, src(
		`x = f"{"\n".join(y)}"`,
		`y = f"{f"{a!r}" + 'b'}" f'{d["k"]:{w}}'`,
		`z = f"""{`,
		`  "multi"`,
		`}"""`,
		`import core`,
	))
	assert.Equal(t, []Import{{Module: "core", Line: 6}}, imports)
}

func TestParseInvalidUTF8(t *testing.T) {
	_, err := Parse([]byte("import a\nx = '\xff'\n"))
	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, "decode", Reason(err))
}

func TestExtractFileReasons(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.py")
	require.NoError(t, os.WriteFile(bad, []byte("def f(:\n"), 0o644))
	binary := filepath.Join(dir, "bin.py")
	require.NoError(t, os.WriteFile(binary, []byte{0xff, 0xfe, 0x00}, 0o644))
	good := filepath.Join(dir, "good.py")
	require.NoError(t, os.WriteFile(good, []byte("import core\n"), 0o644))

	reasons := map[string]string{
		bad:                              "syntax",
		binary:                           "decode",
		filepath.Join(dir, "missing.py"): "read",
		dir:                              "read",
	}
	for path, want := range reasons {
		imports, err := ExtractFile(path)
		assert.Error(t, err, path)
		assert.Nil(t, imports, path)
		assert.Equal(t, want, Reason(err), path)
	}

	imports, err := ExtractFile(good)
	require.NoError(t, err)
	assert.Equal(t, []Import{{Module: "core", Line: 1}}, imports)
}

func TestImportTop(t *testing.T) {
	assert.Equal(t, "core", Import{Module: "core.state.x"}.Top())
	assert.Equal(t, "os", Import{Module: "os"}.Top())
}
