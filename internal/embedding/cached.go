package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/vaultvec/internal/apperr"
)

// DefaultCacheSize is the number of vectors kept when no size is configured.
const DefaultCacheSize = 1000

// Cached wraps an Embedder with an LRU cache keyed by model and text.
// Repeated queries and unchanged notes skip the provider round-trip.
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached creates a cached embedder.
func NewCached(inner Embedder, size int) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &Cached{inner: inner, cache: cache}
}

func (c *Cached) key(text string) string {
	h := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// Embed returns a cached vector when available.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	k := c.key(text)
	if vec, ok := c.cache.Get(k); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(k, vec)
	return vec, nil
}

// EmbedBatch only sends the cache misses to the inner embedder.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.key(text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding: %w: got %d vectors for %d inputs", apperr.ErrEmbedding, len(fresh), len(missTexts))
	}
	for j, idx := range missIdx {
		results[idx] = fresh[j]
		c.cache.Add(c.key(texts[idx]), fresh[j])
	}
	return results, nil
}

// Dimensions passes through to the inner embedder.
func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

// ModelName passes through to the inner embedder.
func (c *Cached) ModelName() string { return c.inner.ModelName() }

// Len reports the number of cached vectors.
func (c *Cached) Len() int { return c.cache.Len() }
