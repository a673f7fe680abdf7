package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/docaihq/docai/pkg/cache"
	"github.com/docaihq/docai/pkg/domain"
	"github.com/docaihq/docai/pkg/log"
)

// Engine answers one retrieval request: optional query expansion, a
// concurrent per-sub-question search fan-out, then merge and rank.
type Engine struct {
	embedder       domain.Embedder
	vectors        domain.VectorStore
	generator      domain.Generator
	cache          domain.Cache
	expansionCount int
	logger         *slog.Logger
}

func New(embedder domain.Embedder, vectors domain.VectorStore, generator domain.Generator, c domain.Cache, expansionCount int) *Engine {
	if expansionCount <= 0 {
		expansionCount = 3
	}
	return &Engine{
		embedder:       embedder,
		vectors:        vectors,
		generator:      generator,
		cache:          c,
		expansionCount: expansionCount,
		logger:         log.WithModule("retrieval"),
	}
}

// Retrieve returns the top-k merged results plus the question list that
// fed the fan-out (the original first). Sub-question failures degrade
// to empty result lists; an empty merged set is a valid outcome.
func (e *Engine) Retrieve(ctx context.Context, query string, fileIDs []string, k int, enableExpansion bool) ([]domain.SearchResult, []string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil, fmt.Errorf("%w: query cannot be empty", domain.ErrInvalidInput)
	}
	if len(fileIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: file_ids cannot be empty", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = 5
	}

	questions := []string{query}
	if enableExpansion {
		questions = e.ExpandQuery(ctx, query)
	}

	results, err := e.Search(ctx, questions, fileIDs, k)
	if err != nil {
		return nil, nil, err
	}
	return results, questions, nil
}

// Search runs the concurrent fan-out for an already-expanded question
// list and merges the per-question results.
func (e *Engine) Search(ctx context.Context, questions []string, fileIDs []string, k int) ([]domain.SearchResult, error) {
	if len(fileIDs) == 0 {
		return nil, fmt.Errorf("%w: file_ids cannot be empty", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = 5
	}

	perQuestion := make([][]domain.SearchResult, len(questions))
	var wg sync.WaitGroup
	for i, q := range questions {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			results, err := e.searchOne(ctx, q, fileIDs, k)
			if err != nil {
				e.logger.Warn("sub-question search failed", "question", q, "error", err)
				return
			}
			perQuestion[i] = results
		}(i, q)
	}
	wg.Wait()

	return mergeRank(perQuestion, k), nil
}

// searchOne runs one sub-question against every requested partition.
// Absent partitions contribute zero results; the per-question result
// list is cached on success.
func (e *Engine) searchOne(ctx context.Context, question string, fileIDs []string, k int) ([]domain.SearchResult, error) {
	key := cache.SearchKey(question, fileIDs, k)
	if raw, ok := e.cache.Get(ctx, key); ok {
		var cached []domain.SearchResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	vector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	var all []domain.SearchResult
	for _, fileID := range fileIDs {
		partition := domain.PartitionName(fileID)
		exists, err := e.vectors.HasPartition(ctx, partition)
		if err != nil {
			return nil, err
		}
		if !exists {
			// Not yet indexed: zero results, not an error.
			continue
		}
		results, err := e.vectors.Search(ctx, partition, vector, k)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}

	if raw, err := json.Marshal(all); err == nil {
		e.cache.Set(ctx, key, raw, cache.SearchTTL)
	}
	return all, nil
}

// mergeRank unions the per-question lists, deduplicates by content
// (first occurrence wins), sorts by ascending L2 distance with a
// (file_id, level_index) tie-break, and keeps the top k.
func mergeRank(lists [][]domain.SearchResult, k int) []domain.SearchResult {
	seen := make(map[string]struct{})
	var union []domain.SearchResult
	for _, list := range lists {
		for _, r := range list {
			if _, dup := seen[r.Content]; dup {
				continue
			}
			seen[r.Content] = struct{}{}
			union = append(union, r)
		}
	}

	sort.SliceStable(union, func(i, j int) bool {
		if union[i].Score != union[j].Score {
			return union[i].Score < union[j].Score
		}
		if union[i].FileID != union[j].FileID {
			return union[i].FileID < union[j].FileID
		}
		return union[i].LevelIndex < union[j].LevelIndex
	})

	if len(union) > k {
		union = union[:k]
	}
	return union
}
