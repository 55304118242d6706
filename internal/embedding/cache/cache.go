// Package cache implements a durable, write-through embedding cache keyed by
// exact input text.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"taxrag/internal/domain"
	"taxrag/internal/metrics"
)

// ErrProviderUnavailable is returned when a cache miss could not be filled
// because the embedding provider failed.
var ErrProviderUnavailable = errors.New("embedding provider unavailable")

// ErrInvalidText is returned for text that is not valid UTF-8. The JSON cache
// file cannot represent such keys exactly, so they are never cached.
var ErrInvalidText = errors.New("embedding cache: text is not valid UTF-8")

// Cache maps exact text to its embedding vector. Entries are never evicted;
// the whole mapping is rewritten to disk after every insertion.
type Cache struct {
	path     string
	provider domain.Embedder
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	entries map[string]domain.Vector
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMetrics records hits, misses and provider failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New loads the cache stored at path. A missing file yields an empty cache;
// an unreadable or malformed file is an error. provider may be nil for a
// read-only cache, in which case misses fail with ErrProviderUnavailable.
func New(path string, provider domain.Embedder, opts ...Option) (*Cache, error) {
	c := &Cache{
		path:     path,
		provider: provider,
		logger:   slog.Default(),
		entries:  make(map[string]domain.Vector),
	}
	for _, opt := range opts {
		opt(c)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.logger.Debug("No embedding cache on disk, starting empty", "path", path)
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.entries); err != nil {
			return nil, fmt.Errorf("decode embedding cache %s: %w", path, err)
		}
		if c.entries == nil {
			c.entries = make(map[string]domain.Vector)
		}
	}
	c.logger.Debug("Loaded embedding cache", "path", path, "entries", len(c.entries))
	return c, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lookup returns a copy of the cached vector for text, if present.
func (c *Cache) Lookup(text string) (domain.Vector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	return clone(v), true
}

// Get returns the vector for text, calling the provider on a miss and
// persisting the result before returning.
func (c *Cache) Get(ctx context.Context, text string) (domain.Vector, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}
	if v, ok := c.Lookup(text); ok {
		c.metrics.CacheHit()
		c.logger.Debug("Using cached embedding", "chars", len(text))
		return v, nil
	}
	c.metrics.CacheMiss()

	if c.provider == nil {
		c.metrics.ProviderFailure()
		return nil, fmt.Errorf("%w: no provider configured", ErrProviderUnavailable)
	}
	c.logger.Info("Generating new embedding", "provider", c.provider.Name(), "chars", len(text))
	v, err := c.provider.Embed(ctx, text)
	if err != nil {
		c.metrics.ProviderFailure()
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if len(v) == 0 {
		c.metrics.ProviderFailure()
		return nil, fmt.Errorf("%w: empty embedding", ErrProviderUnavailable)
	}
	if err := c.Put(text, v); err != nil {
		return nil, err
	}
	return clone(v), nil
}

// Put stores v under text and rewrites the cache file.
func (c *Cache) Put(text string, v domain.Vector) error {
	if !utf8.ValidString(text) {
		return ErrInvalidText
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, existed := c.entries[text]
	c.entries[text] = clone(v)
	if err := c.persistLocked(); err != nil {
		// Keep memory consistent with what is on disk.
		if existed {
			c.entries[text] = prev
		} else {
			delete(c.entries, text)
		}
		return fmt.Errorf("persist embedding cache: %w", err)
	}
	return nil
}

// persistLocked writes the full mapping to a temp file in the target
// directory and renames it over the cache file.
func (c *Cache) persistLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, c.path)
}

func clone(v domain.Vector) domain.Vector {
	return append(domain.Vector(nil), v...)
}
