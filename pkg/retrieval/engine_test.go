package retrieval

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docaihq/docai/pkg/cache"
	"github.com/docaihq/docai/pkg/domain"
)

type fakeEmbedder struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 2, 3}, nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

type fakeVectorStore struct {
	mu      sync.Mutex
	results map[string][]domain.SearchResult
	absent  map[string]bool
	err     error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		results: make(map[string][]domain.SearchResult),
		absent:  make(map[string]bool),
	}
}

func (s *fakeVectorStore) EnsurePartition(context.Context, string, int) error { return nil }

func (s *fakeVectorStore) HasPartition(_ context.Context, partition string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.absent[partition], nil
}

func (s *fakeVectorStore) Insert(context.Context, string, []domain.VectorPoint) error { return nil }

func (s *fakeVectorStore) Search(_ context.Context, partition string, _ []float32, limit int) ([]domain.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.results[partition], nil
}

func (s *fakeVectorStore) DropPartition(context.Context, string) error { return nil }
func (s *fakeVectorStore) Close() error                                { return nil }

type fakeGenerator struct {
	response string
	err      error
}

func (g *fakeGenerator) Generate(context.Context, []domain.ChatMessage, *domain.GenerationOptions) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func (g *fakeGenerator) Stream(_ context.Context, _ []domain.ChatMessage, _ *domain.GenerationOptions, fn func(string)) error {
	if g.err != nil {
		return g.err
	}
	fn(g.response)
	return nil
}

func newTestEngine(vectors *fakeVectorStore, gen *fakeGenerator) *Engine {
	return New(&fakeEmbedder{}, vectors, gen, cache.NewMemoryCache(64), 3)
}

func TestRetrieveValidatesInput(t *testing.T) {
	engine := newTestEngine(newFakeVectorStore(), &fakeGenerator{})

	_, _, err := engine.Retrieve(context.Background(), "  ", []string{"file_1"}, 5, false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = engine.Retrieve(context.Background(), "question", nil, 5, false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchMergesAndRanks(t *testing.T) {
	vectors := newFakeVectorStore()
	vectors.results[domain.PartitionName("file_a")] = []domain.SearchResult{
		{Content: "third", Score: 0.9, FileID: "file_a", LevelIndex: 0},
		{Content: "first", Score: 0.1, FileID: "file_a", LevelIndex: 1},
	}
	vectors.results[domain.PartitionName("file_b")] = []domain.SearchResult{
		{Content: "second", Score: 0.5, FileID: "file_b", LevelIndex: 0},
	}
	engine := newTestEngine(vectors, &fakeGenerator{})

	results, err := engine.Search(context.Background(), []string{"q"}, []string{"file_a", "file_b"}, 5)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Content)
	assert.Equal(t, "second", results[1].Content)
	assert.Equal(t, "third", results[2].Content)
}

func TestSearchDeduplicatesByContent(t *testing.T) {
	vectors := newFakeVectorStore()
	vectors.results[domain.PartitionName("file_a")] = []domain.SearchResult{
		{Content: "shared chunk", Score: 0.3, FileID: "file_a", LevelIndex: 0},
		{Content: "shared chunk", Score: 0.8, FileID: "file_a", LevelIndex: 4},
	}
	engine := newTestEngine(vectors, &fakeGenerator{})

	results, err := engine.Search(context.Background(), []string{"q1", "q2"}, []string{"file_a"}, 5)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, float32(0.3), results[0].Score)
}

func TestSearchTieBreaksDeterministically(t *testing.T) {
	vectors := newFakeVectorStore()
	vectors.results[domain.PartitionName("file_b")] = []domain.SearchResult{
		{Content: "from b", Score: 0.5, FileID: "file_b", LevelIndex: 2},
	}
	vectors.results[domain.PartitionName("file_a")] = []domain.SearchResult{
		{Content: "from a later", Score: 0.5, FileID: "file_a", LevelIndex: 7},
		{Content: "from a", Score: 0.5, FileID: "file_a", LevelIndex: 2},
	}
	engine := newTestEngine(vectors, &fakeGenerator{})

	results, err := engine.Search(context.Background(), []string{"q"}, []string{"file_b", "file_a"}, 5)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "from a", results[0].Content)
	assert.Equal(t, "from a later", results[1].Content)
	assert.Equal(t, "from b", results[2].Content)
}

func TestSearchSkipsAbsentPartitions(t *testing.T) {
	vectors := newFakeVectorStore()
	vectors.absent[domain.PartitionName("file_missing")] = true
	vectors.results[domain.PartitionName("file_a")] = []domain.SearchResult{
		{Content: "hit", Score: 0.2, FileID: "file_a"},
	}
	engine := newTestEngine(vectors, &fakeGenerator{})

	results, err := engine.Search(context.Background(), []string{"q"}, []string{"file_missing", "file_a"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hit", results[0].Content)
}

func TestSearchCapsAtTopK(t *testing.T) {
	vectors := newFakeVectorStore()
	var hits []domain.SearchResult
	for i := 0; i < 10; i++ {
		hits = append(hits, domain.SearchResult{
			Content: fmt.Sprintf("chunk %d", i),
			Score:   float32(i) * 0.1,
			FileID:  "file_a",
		})
	}
	vectors.results[domain.PartitionName("file_a")] = hits
	engine := newTestEngine(vectors, &fakeGenerator{})

	results, err := engine.Search(context.Background(), []string{"q"}, []string{"file_a"}, 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchSubQuestionFailureDegrades(t *testing.T) {
	vectors := newFakeVectorStore()
	vectors.err = fmt.Errorf("%w: backend unavailable", domain.ErrIndexFailed)
	engine := newTestEngine(vectors, &fakeGenerator{})

	// Per-sub-question failures are swallowed; an empty merged set is
	// the degraded outcome.
	results, err := engine.Search(context.Background(), []string{"q"}, []string{"file_a"}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchUsesCache(t *testing.T) {
	vectors := newFakeVectorStore()
	vectors.results[domain.PartitionName("file_a")] = []domain.SearchResult{
		{Content: "cached hit", Score: 0.1, FileID: "file_a"},
	}
	embedder := &fakeEmbedder{}
	engine := New(embedder, vectors, &fakeGenerator{}, cache.NewMemoryCache(64), 3)

	_, err := engine.Search(context.Background(), []string{"q"}, []string{"file_a"}, 5)
	require.NoError(t, err)
	first := embedder.calls

	_, err = engine.Search(context.Background(), []string{"q"}, []string{"file_a"}, 5)
	require.NoError(t, err)
	assert.Equal(t, first, embedder.calls, "second identical search should be served from cache")
}

func TestExpandQueryParsesResponse(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"original_query": "q",
		"intent": "general_inquiry",
		"sub_questions": ["variant one", "variant two"]
	}`}
	engine := newTestEngine(newFakeVectorStore(), gen)

	questions := engine.ExpandQuery(context.Background(), "what is the warranty period?")
	assert.Equal(t, []string{"what is the warranty period?", "variant one", "variant two"}, questions)
}

func TestExpandQueryToleratesCodeFences(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n{\"sub_questions\": [\"alt\"]}\n```"}
	engine := newTestEngine(newFakeVectorStore(), gen)

	questions := engine.ExpandQuery(context.Background(), "original")
	assert.Equal(t, []string{"original", "alt"}, questions)
}

func TestExpandQueryFallsBackOnLLMError(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: model offline", domain.ErrGenerationFailed)}
	engine := newTestEngine(newFakeVectorStore(), gen)

	questions := engine.ExpandQuery(context.Background(), "original question")
	assert.Equal(t, []string{"original question"}, questions)
}

func TestExpandQueryFallsBackOnGarbage(t *testing.T) {
	gen := &fakeGenerator{response: "I could not produce JSON, sorry."}
	engine := newTestEngine(newFakeVectorStore(), gen)

	questions := engine.ExpandQuery(context.Background(), "original question")
	assert.Equal(t, []string{"original question"}, questions)
}

func TestExpandQueryDeduplicatesAndCaps(t *testing.T) {
	gen := &fakeGenerator{response: `{"sub_questions": ["original", "a", "a", "b", "c", "d"]}`}
	engine := newTestEngine(newFakeVectorStore(), gen)

	questions := engine.ExpandQuery(context.Background(), "original")
	// Original plus at most expansionCount variants.
	assert.Equal(t, []string{"original", "a", "b", "c"}, questions)
}
