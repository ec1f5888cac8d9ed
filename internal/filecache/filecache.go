// Package filecache keeps recently read letterhead and image files in memory.
package filecache

import (
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// FileReader reads a whole file.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Cache is a read-through cache over a FileReader. It is safe for concurrent use.
type Cache struct {
	src      FileReader
	entries  *cache.Cache
	maxBytes int64
	logger   *zap.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxEntryBytes skips caching of files larger than n bytes. Zero or less caches everything.
func WithMaxEntryBytes(n int64) Option {
	return func(c *Cache) { c.maxBytes = n }
}

// New returns a cache over src whose entries expire after ttl.
func New(src FileReader, ttl, cleanupInterval time.Duration, opts ...Option) *Cache {
	c := &Cache{
		src:     src,
		entries: cache.New(ttl, cleanupInterval),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadFile returns the cached content of path, reading it from the source on a miss.
// Errors are never cached.
func (c *Cache) ReadFile(path string) ([]byte, error) {
	if v, ok := c.entries.Get(path); ok {
		return v.([]byte), nil
	}
	data, err := c.src.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		c.logger.Debug("file too large to cache", zap.String("path", path), zap.Int("bytes", len(data)))
		return data, nil
	}
	c.entries.SetDefault(path, data)
	return data, nil
}

// Invalidate drops path from the cache.
func (c *Cache) Invalidate(path string) {
	c.entries.Delete(path)
	c.logger.Debug("cache entry invalidated", zap.String("path", path))
}

// Flush drops every entry.
func (c *Cache) Flush() {
	c.entries.Flush()
}

// Len returns the number of cached entries, including expired ones not yet cleaned up.
func (c *Cache) Len() int {
	return c.entries.ItemCount()
}
