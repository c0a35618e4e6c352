// Package cache provides a memoizing decorator over any Embedder.
// Embedding is a pure function of the text and the loaded model, so cached
// vectors never go stale; the cache only trades memory for repeated lookups
// of recurring text (dialogue windows re-embed the same entries each turn).
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/ari-bc/gpt-semantic-memory/memory"
)

// Embedder wraps an inner Embedder with a ristretto cache keyed by the
// input text. Cost accounting is byte-based: one float32 per dimension.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New creates a caching Embedder with maxBytes of vector storage.
func New(inner memory.Embedder, maxBytes int64) (*Embedder, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: new ristretto cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, computing and caching it on a
// miss.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return v.([]float32), nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until buffered cache writes have been applied. Tests use it
// to make hit/miss behaviour deterministic.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases the cache's internal goroutines.
func (e *Embedder) Close() {
	e.cache.Close()
}
