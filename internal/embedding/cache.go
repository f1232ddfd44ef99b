package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/contractiq/backend/internal/cache"
)

const cacheTTL = 24 * time.Hour

// Cached wraps an Embedder with a Redis-backed cache keyed by text hash.
// Cache failures degrade to the inner embedder; they never fail the call.
type Cached struct {
	inner Embedder
	cache *cache.Cache
	model string
}

func NewCached(inner Embedder, c *cache.Cache, model string) *Cached {
	if model == "" {
		model = defaultModel
	}
	return &Cached{inner: inner, cache: c, model: model}
}

func (c *Cached) Dim() int { return c.inner.Dim() }

func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		var vec []float32
		if err := c.cache.Get(ctx, c.key(t), &vec); err == nil && len(vec) == c.Dim() {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := c.cache.Set(ctx, c.key(texts[i]), vecs[j], cacheTTL); err != nil {
			// cache write failures are not the caller's problem
			continue
		}
	}
	return out, nil
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embed:%s:%s", c.model, hex.EncodeToString(sum[:]))
}

var _ Embedder = (*Cached)(nil)
