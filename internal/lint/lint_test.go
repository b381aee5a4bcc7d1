package lint

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lerrors "github.com/flamingcow/layerlint/internal/errors"
	"github.com/flamingcow/layerlint/internal/layers"
	"github.com/flamingcow/layerlint/internal/metrics"
	"github.com/flamingcow/layerlint/internal/pysource"
)

// writeTree creates files under a fresh temp dir. Keys are slash paths.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func TestCheckAllowedImport(t *testing.T) {
	root := writeTree(t, map[string]string{
		"core/x.py":  "",
		"tools/y.py": "import core.x\n",
	})

	res, err := Check(root)
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.Warnings)
	assert.True(t, res.Passed())
	assert.Equal(t, 2, res.Files)
}

func TestCheckUnguardedViolation(t *testing.T) {
	root := writeTree(t, map[string]string{
		"core/z.py": "import graphs.main\n",
	})

	res, err := Check(root)
	require.NoError(t, err)
	assert.Equal(t, []Violation{{
		File:   "core/z.py",
		Line:   1,
		From:   layers.Core,
		To:     layers.Graphs,
		Module: "graphs.main",
	}}, res.Violations)
	assert.Empty(t, res.Warnings)
	assert.False(t, res.Passed())
}

func TestCheckGuardedWarning(t *testing.T) {
	root := writeTree(t, map[string]string{
		"core/z.py": "try:\n    import graphs.main\nexcept ImportError:\n    pass\n",
	})

	res, err := Check(root)
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, Violation{File: "core/z.py", Line: 2, From: layers.Core, To: layers.Graphs, Module: "graphs.main"}, res.Warnings[0])
	assert.True(t, res.Passed())
}

func TestCheckRootNotDirectory(t *testing.T) {
	root := writeTree(t, map[string]string{"main.py": "import graphs\n"})

	_, err := Check(filepath.Join(root, "main.py"))
	assert.Equal(t, lerrors.ENotDirectory, lerrors.GetCode(err))

	_, err = Check(filepath.Join(root, "missing"))
	assert.Equal(t, lerrors.ENotDirectory, lerrors.GetCode(err))
}

func TestCheckSymlinkedRoot(t *testing.T) {
	root := writeTree(t, map[string]string{"core/z.py": "import graphs.main\n"})
	link := filepath.Join(t.TempDir(), "project")
	require.NoError(t, os.Symlink(root, link))

	res, err := Check(link)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "core/z.py", res.Violations[0].File)
}

func TestCheckSymlinkedFile(t *testing.T) {
	root := writeTree(t, map[string]string{"core/x.py": ""})
	target := filepath.Join(t.TempDir(), "z.py")
	require.NoError(t, os.WriteFile(target, []byte("import graphs.main\n"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(root, "core", "z.py")))

	res, err := Check(root)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, []Violation{{
		File:   "core/z.py",
		Line:   1,
		From:   layers.Core,
		To:     layers.Graphs,
		Module: "graphs.main",
	}}, res.Violations)
}

func TestCheckSkipsUnclassifiedAndExternal(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":            "import graphs.main\nimport interfaces\n",
		"scripts/run.py":     "import interfaces.api\n",
		"core/a.py":          "import os\nimport requests\nfrom core.b import c\nimport config.settings\n",
		"graphs/g.py":        "from config import settings\nfrom nodes.x import y\n",
		"interfaces/cli.txt": "import tools\n",
	})

	res, err := Check(root)
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 2, res.Skipped)
}

func TestCheckConfigLayerHasNoAllowedTargets(t *testing.T) {
	root := writeTree(t, map[string]string{
		"config/settings.py": "import core.types\n",
	})

	res, err := Check(root)
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, layers.Config, res.Violations[0].From)
	assert.Equal(t, layers.Core, res.Violations[0].To)
}

func TestCheckOrderIsWalkThenSource(t *testing.T) {
	root := writeTree(t, map[string]string{
		"core/b.py":   "import nodes\nimport graphs\n",
		"core/a.py":   "import tools\n",
		"memory/c.py": "try:\n    import nodes\nexcept:\n    pass\nimport interfaces\n",
	})

	for _, workers := range []int{1, 4, 16} {
		c := &Checker{Workers: workers}
		res, err := c.Check(context.Background(), root)
		require.NoError(t, err)

		var got []string
		for _, v := range res.Violations {
			got = append(got, v.File+">"+string(v.To))
		}
		assert.Equal(t, []string{
			"core/a.py>tools",
			"core/b.py>nodes",
			"core/b.py>graphs",
			"memory/c.py>interfaces",
		}, got, "workers=%d", workers)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, "memory/c.py", res.Warnings[0].File)
	}
}

func TestCheckBadFilesYieldNoImports(t *testing.T) {
	root := writeTree(t, map[string]string{
		"core/bad.py":    "import graphs\ndef f(:\n",
		"core/binary.py": "import graphs\n\xff\n",
		"core/good.py":   "import graphs\n",
	})

	reg := metrics.NewRegistry()
	c := &Checker{Metrics: reg}
	res, err := c.Check(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "core/good.py", res.Violations[0].File)

	text, err := reg.Text()
	require.NoError(t, err)
	assert.Contains(t, text, `layerlint_parse_failures_total{reason="syntax"} 1`)
	assert.Contains(t, text, `layerlint_parse_failures_total{reason="decode"} 1`)
	assert.Contains(t, text, `layerlint_files_scanned_total{layer="core"} 3`)
	assert.Contains(t, text, `layerlint_import_edges_total{verdict="violation"} 1`)
}

func TestCheckEmptyTree(t *testing.T) {
	res, err := Check(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, res.Violations)
	assert.NotNil(t, res.Warnings)
	assert.Empty(t, res.Violations)
	assert.Empty(t, res.Warnings)
}

func TestCheckIsIdempotent(t *testing.T) {
	root := writeTree(t, map[string]string{
		"core/a.py":  "import graphs\ntry:\n    import nodes\nexcept ImportError:\n    pass\n",
		"tools/b.py": "import memory.store\nimport core\n",
	})

	first, err := Check(root)
	require.NoError(t, err)
	second, err := Check(root)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCheckCustomPolicy(t *testing.T) {
	root := writeTree(t, map[string]string{
		"domain/a.py": "import shared.util\n",
		"app/b.py":    "import domain.a\n",
		"domain/c.py": "import app\n",
		"core/d.py":   "import app\n",
	})

	policy := layers.New(map[layers.Layer][]layers.Layer{
		"domain": {},
		"app":    {"domain"},
	}, "shared")

	res, err := (&Checker{Policy: policy}).Check(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "domain/c.py", res.Violations[0].File)
	assert.Equal(t, 1, res.Skipped)
}

func TestCheckCancelledContext(t *testing.T) {
	root := writeTree(t, map[string]string{"core/a.py": "import os\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Checker{}).Check(ctx, root)
	assert.Equal(t, lerrors.EScanFailed, lerrors.GetCode(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckUsesExtractor(t *testing.T) {
	root := writeTree(t, map[string]string{"nodes/a.py": ""})

	var calls []string
	c := &Checker{
		Workers: 1,
		Extractor: extractFunc(func(path string) ([]pysource.Import, error) {
			calls = append(calls, filepath.Base(path))
			return []pysource.Import{{Module: "interfaces.web", Line: 7}}, nil
		}),
	}

	res, err := c.Check(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, calls)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, 7, res.Violations[0].Line)
}

func TestScan(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":   "import core\n",
		"core/a.py": "import os\n",
	})

	c := &Checker{}
	files, err := c.Scan(context.Background(), root, false)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "core/a.py", files[0].File)

	files, err = c.Scan(context.Background(), root, true)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.False(t, files[1].Classified)
	assert.Equal(t, "main.py", files[1].File)
	assert.Equal(t, []pysource.Import{{Module: "core", Line: 1}}, files[1].Imports)
}

func TestEvaluateProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 300
	properties := gopter.NewProperties(params)

	p := layers.Default()
	all := []any{
		layers.Core, layers.Memory, layers.Prompts, layers.Tools,
		layers.Nodes, layers.Graphs, layers.Interfaces, layers.Config,
	}

	record := func(from, to layers.Layer, guarded bool) (Violation, string) {
		f := FileImports{File: string(from) + "/m.py", Layer: from, Classified: true}
		return Evaluate(p, f, pysource.Import{Module: string(to) + ".mod", Line: 3, Guarded: guarded})
	}

	properties.Property("allowed and same-layer pairs produce no record", prop.ForAll(
		func(from, to layers.Layer, guarded bool) bool {
			if !p.Permits(from, to) {
				return true
			}
			_, verdict := record(from, to, guarded)
			return verdict == metrics.VerdictAllowed || verdict == metrics.VerdictSameLayer
		},
		gen.OneConstOf(all...), gen.OneConstOf(all...), gen.Bool(),
	))

	properties.Property("disallowed pairs produce one record routed by guard", prop.ForAll(
		func(from, to layers.Layer, guarded bool) bool {
			if p.Permits(from, to) {
				return true
			}
			v, verdict := record(from, to, guarded)
			want := metrics.VerdictViolation
			if guarded {
				want = metrics.VerdictWarning
			}
			return verdict == want && v.From == from && v.To == to && v.Line == 3
		},
		gen.OneConstOf(all...), gen.OneConstOf(all...), gen.Bool(),
	))

	properties.Property("external modules produce no record", prop.ForAll(
		func(from layers.Layer, name string) bool {
			if p.Known(strings.SplitN(name, ".", 2)[0]) {
				return true
			}
			f := FileImports{Layer: from, Classified: true}
			_, verdict := Evaluate(p, f, pysource.Import{Module: name, Line: 1})
			return verdict == metrics.VerdictExternal
		},
		gen.OneConstOf(all...), gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestEdgesAndCycles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"core/a.py":   "import graphs\nimport graphs.x\nimport os\nimport core.b\n",
		"graphs/b.py": "try:\n    import nodes\nexcept ImportError:\n    pass\n",
		"nodes/c.py":  "import core\n",
		"tools/d.py":  "import core\n",
	})

	c := &Checker{}
	files, err := c.Scan(context.Background(), root, false)
	require.NoError(t, err)

	edges := Edges(layers.Default(), files)
	assert.Equal(t, []Edge{
		{From: layers.Core, To: layers.Graphs, Imports: 2, Allowed: false},
		{From: layers.Graphs, To: layers.Nodes, Imports: 1, Guarded: 1, Allowed: true},
		{From: layers.Nodes, To: layers.Core, Imports: 1, Allowed: true},
		{From: layers.Tools, To: layers.Core, Imports: 1, Allowed: true},
	}, edges)

	assert.Equal(t, [][]layers.Layer{{layers.Core, layers.Graphs, layers.Nodes}}, Cycles(edges))
}

func TestCyclesNone(t *testing.T) {
	edges := []Edge{
		{From: layers.Graphs, To: layers.Core},
		{From: layers.Nodes, To: layers.Core},
	}
	assert.Empty(t, Cycles(edges))
}
