package embedder

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docaihq/docai/pkg/cache"
	"github.com/docaihq/docai/pkg/domain"
)

type countingEmbedder struct {
	singleCalls int
	batchTexts  []string
	err         error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.singleCalls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.batchTexts = append(e.batchTexts, texts...)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func TestCachedEmbedMemoizes(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCached(inner, cache.NewMemoryCache(64))
	ctx := context.Background()

	first, err := cached.Embed(ctx, "some text")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "some text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.singleCalls)
}

func TestCachedEmbedBatchOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCached(inner, cache.NewMemoryCache(64))
	ctx := context.Background()

	_, err := cached.Embed(ctx, "warm")
	require.NoError(t, err)

	vectors, err := cached.EmbedBatch(ctx, []string{"warm", "cold one", "cold two"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, v := range vectors {
		assert.NotEmpty(t, v, "vector %d", i)
	}

	// Only the two cold texts reach the inner embedder.
	assert.Equal(t, []string{"cold one", "cold two"}, inner.batchTexts)
}

func TestCachedEmbedBatchAllHits(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCached(inner, cache.NewMemoryCache(64))
	ctx := context.Background()

	_, err := cached.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	inner.batchTexts = nil

	_, err = cached.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, inner.batchTexts)
}

func TestCachedEmbedPropagatesError(t *testing.T) {
	inner := &countingEmbedder{err: fmt.Errorf("%w: backend down", domain.ErrEmbeddingFailed)}
	cached := NewCached(inner, cache.NewMemoryCache(64))

	_, err := cached.Embed(context.Background(), "text")
	require.ErrorIs(t, err, domain.ErrEmbeddingFailed)

	_, err = cached.EmbedBatch(context.Background(), []string{"text"})
	require.ErrorIs(t, err, domain.ErrEmbeddingFailed)
}
