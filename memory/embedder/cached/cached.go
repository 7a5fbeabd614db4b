// Package cached wraps any embedder with a ristretto cache.
//
// Conversations re-embed the same phrases constantly: every turn
// embeds the user message, and extraction re-embeds candidate facts
// that often repeat across exchanges. Caching cuts both latency and
// (for API-backed embedders) cost.
package cached

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/ristretto"

	"github.com/everkin/kin-go-sdk/memory"
)

// Config holds cache sizing.
type Config struct {
	// MaxEntries bounds how many embeddings the cache holds.
	// Default: 4096.
	MaxEntries int64
}

// DefaultConfig returns standard cache sizing.
var DefaultConfig = &Config{MaxEntries: 4096}

// Embedder decorates an inner embedder with an in-process cache keyed
// by exact text.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache

	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps inner with a cache.
func New(inner memory.Embedder, config *Config) (*Embedder, error) {
	if config == nil {
		config = DefaultConfig
	}
	maxEntries := config.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultConfig.MaxEntries
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10, // Ristretto's recommended ratio.
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text or computes and caches it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if emb, ok := v.([]float32); ok {
			e.hits.Add(1)
			return emb, nil
		}
	}

	emb, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.misses.Add(1)
	e.cache.Set(text, emb, 1)
	// Block until the set is applied; embedding latency dwarfs the
	// wait, and it keeps repeat lookups deterministic.
	e.cache.Wait()
	return emb, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Stats reports cache hits and misses since creation.
func (e *Embedder) Stats() (hits, misses int64) {
	return e.hits.Load(), e.misses.Load()
}

// Close releases the cache.
func (e *Embedder) Close() {
	e.cache.Close()
}
