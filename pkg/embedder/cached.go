package embedder

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/docaihq/docai/pkg/cache"
	"github.com/docaihq/docai/pkg/domain"
	"github.com/docaihq/docai/pkg/log"
)

// Cached memoizes per-text vectors in the cache port. Misses and cache
// failures fall through to the inner embedder.
type Cached struct {
	inner  domain.Embedder
	cache  domain.Cache
	logger *slog.Logger
}

func NewCached(inner domain.Embedder, c domain.Cache) *Cached {
	return &Cached{
		inner:  inner,
		cache:  c,
		logger: log.WithModule("embedder"),
	}
}

func (e *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.EmbeddingKey(text)
	if raw, ok := e.cache.Get(ctx, key); ok {
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.store(ctx, key, vec)
	return vec, nil
}

func (e *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		raw, ok := e.cache.Get(ctx, cache.EmbeddingKey(text))
		if ok {
			var vec []float32
			if err := json.Unmarshal(raw, &vec); err == nil && len(vec) > 0 {
				vectors[i] = vec
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		fresh, err := e.inner.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, vec := range fresh {
			vectors[missingIdx[j]] = vec
			e.store(ctx, cache.EmbeddingKey(missing[j]), vec)
		}
	}
	return vectors, nil
}

func (e *Cached) store(ctx context.Context, key string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		e.logger.Warn("failed to encode vector for cache", "error", err)
		return
	}
	e.cache.Set(ctx, key, raw, cache.EmbeddingTTL)
}
