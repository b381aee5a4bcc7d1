package pysource

import (
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey struct {
	path    string
	size    int64
	modTime int64
}

type cacheEntry struct {
	imports []Import
	err     error
}

// CachedExtractor memoizes ExtractFile results. A file is re-parsed when its
// size or modification time changes. It is safe for concurrent use.
type CachedExtractor struct {
	cache *lru.Cache[cacheKey, cacheEntry]
}

// NewCachedExtractor returns an extractor holding at most size entries.
func NewCachedExtractor(size int) (*CachedExtractor, error) {
	c, err := lru.New[cacheKey, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &CachedExtractor{cache: c}, nil
}

// ExtractFile returns the imports of path, parsing it only on a cache miss.
// Read errors are never cached.
func (c *CachedExtractor) ExtractFile(path string) ([]Import, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	key := cacheKey{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if e, ok := c.cache.Get(key); ok {
		return cloneImports(e.imports), e.err
	}

	imports, err := ExtractFile(path)
	if err != nil && Reason(err) == "read" {
		return nil, err
	}
	c.cache.Add(key, cacheEntry{imports: imports, err: err})
	return cloneImports(imports), err
}

// Len returns the number of cached files.
func (c *CachedExtractor) Len() int {
	return c.cache.Len()
}

func cloneImports(in []Import) []Import {
	if in == nil {
		return nil
	}
	out := make([]Import, len(in))
	copy(out, in)
	return out
}
