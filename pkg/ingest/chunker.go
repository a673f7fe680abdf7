package ingest

import (
	"github.com/google/uuid"

	"github.com/docaihq/docai/pkg/domain"
	"github.com/docaihq/docai/pkg/tokenizer"
)

// Chunker turns an extracted corpus into the chunk set indexed for one
// file.
type Chunker interface {
	Chunk(fileID, text string) []domain.Chunk
	Strategy() string
}

// HierarchicalChunker runs the splitter once per configured level size
// and links each chunk to a parent in the level above by proportional
// index mapping. The mapping is the contract; it does not promise
// character-span containment.
type HierarchicalChunker struct {
	sizes   []int
	overlap int
}

func NewHierarchicalChunker(sizes []int, overlap int) *HierarchicalChunker {
	return &HierarchicalChunker{sizes: sizes, overlap: overlap}
}

func (c *HierarchicalChunker) Strategy() string { return "hierarchical" }

func (c *HierarchicalChunker) Chunk(fileID, text string) []domain.Chunk {
	var all []domain.Chunk
	var parentIDs []string

	for level, size := range c.sizes {
		texts := SplitText(text, size, c.overlap)
		ids := make([]string, len(texts))

		for i, content := range texts {
			id := uuid.New().String()
			ids[i] = id

			chunk := domain.Chunk{
				ID:            id,
				FileID:        fileID,
				Level:         level,
				LevelIndex:    i,
				Content:       content,
				TokenEstimate: tokenizer.Estimate(content),
			}
			if level > 0 && len(parentIDs) > 0 {
				// parent = min(floor(i * N_parent / N_child), N_parent - 1)
				parent := i * len(parentIDs) / len(texts)
				if parent > len(parentIDs)-1 {
					parent = len(parentIDs) - 1
				}
				chunk.ParentChunkID = parentIDs[parent]
			}
			all = append(all, chunk)
		}
		parentIDs = ids
	}
	return all
}

// RecursiveChunker is the single-level fallback strategy with no parent
// linkage.
type RecursiveChunker struct {
	size    int
	overlap int
}

func NewRecursiveChunker(size, overlap int) *RecursiveChunker {
	return &RecursiveChunker{size: size, overlap: overlap}
}

func (c *RecursiveChunker) Strategy() string { return "recursive" }

func (c *RecursiveChunker) Chunk(fileID, text string) []domain.Chunk {
	texts := SplitText(text, c.size, c.overlap)
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, content := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:            uuid.New().String(),
			FileID:        fileID,
			Level:         0,
			LevelIndex:    i,
			Content:       content,
			TokenEstimate: tokenizer.Estimate(content),
		})
	}
	return chunks
}
