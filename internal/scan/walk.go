// Package scan discovers Python source files under a project root and
// attributes each one to a layer.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/flamingcow/layerlint/internal/layers"
)

// Ext is the source extension the walker collects.
const Ext = ".py"

// Discover returns every *.py file under root in lexical walk order. A
// symlinked file is kept when its target is a regular file; symlinked
// directories are not followed. Subdirectories that cannot be read are
// skipped.
func Discover(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), Ext) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// Classify returns the layer of file relative to root. Files sitting
// directly in root, files outside root and files whose top directory is not
// a known layer are unclassified.
func Classify(file, root string, policy *layers.Policy) (layers.Layer, bool) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || parts[0] == ".." {
		return "", false
	}

	if !policy.Known(parts[0]) {
		return "", false
	}
	return layers.Layer(parts[0]), true
}

// Rel returns file relative to root using forward slashes, falling back to
// file itself.
func Rel(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}
