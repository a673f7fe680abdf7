package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(16)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("value"), time.Minute)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache(16)
	_, ok := c.Get(context.Background(), "absent")
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(16)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("value"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestMemoryCacheZeroTTLIgnored(t *testing.T) {
	c := NewMemoryCache(16)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("value"), 0)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCacheOverwrite(t *testing.T) {
	c := NewMemoryCache(16)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("old"), time.Minute)
	c.Set(ctx, "k", []byte("new"), time.Minute)

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute)
	}

	// Touch k0 so k1 becomes the eviction candidate.
	_, ok := c.Get(ctx, "k0")
	require.True(t, ok)

	c.Set(ctx, "k3", []byte("v"), time.Minute)

	_, ok = c.Get(ctx, "k1")
	assert.False(t, ok, "least recently used entry should be evicted")
	for _, key := range []string{"k0", "k2", "k3"} {
		_, ok := c.Get(ctx, key)
		assert.True(t, ok, "%s should survive", key)
	}
}

func TestKeyPrefixes(t *testing.T) {
	assert.Regexp(t, `^emb:[0-9a-f]{16}$`, EmbeddingKey("text"))
	assert.Regexp(t, `^qexp:[0-9a-f]{16}$`, ExpansionKey("query"))
	assert.Regexp(t, `^search:[0-9a-f]{16}$`, SearchKey("query", []string{"f1"}, 5))
	assert.Regexp(t, `^file:[0-9a-f]{16}$`, FileMetaKey("file_1"))
}

func TestKeysAreDeterministic(t *testing.T) {
	assert.Equal(t, EmbeddingKey("same"), EmbeddingKey("same"))
	assert.NotEqual(t, EmbeddingKey("one"), EmbeddingKey("two"))
}

func TestSearchKeyOrderInsensitiveFileIDs(t *testing.T) {
	a := SearchKey("q", []string{"f1", "f2", "f3"}, 5)
	b := SearchKey("q", []string{"f3", "f1", "f2"}, 5)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, SearchKey("q", []string{"f1", "f2"}, 5))
	assert.NotEqual(t, a, SearchKey("q", []string{"f1", "f2", "f3"}, 10))
	assert.NotEqual(t, a, SearchKey("other", []string{"f1", "f2", "f3"}, 5))
}

func TestSearchKeyDoesNotMutateInput(t *testing.T) {
	ids := []string{"f3", "f1", "f2"}
	SearchKey("q", ids, 5)
	assert.Equal(t, []string{"f3", "f1", "f2"}, ids)
}
