package backend

import (
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// Cache fronts file reads with an LRU of whole-file contents. Boot assets
// are small and fetched repeatedly by every provisioning node, so serving
// repeat transfers from memory avoids re-reading the same files per client.
type Cache struct {
	entries *lru.Cache[string, []byte]
}

// NewCache builds a content cache holding up to size files.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, errors.Wrap(err, "backend: build cache")
	}
	return &Cache{entries: entries}, nil
}

// Open returns a Reader for path, served from cache when possible.
func (c *Cache) Open(path string) (Reader, error) {
	if content, ok := c.entries.Get(path); ok {
		return NewMemoryReader(content), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "backend: cache fill")
	}
	c.entries.Add(path, content)
	return NewMemoryReader(content), nil
}

// Invalidate drops path from the cache, forcing a re-read on next Open.
func (c *Cache) Invalidate(path string) {
	c.entries.Remove(path)
}

// Len reports the number of cached files.
func (c *Cache) Len() int { return c.entries.Len() }
