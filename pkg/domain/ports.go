package domain

import (
	"context"
	"time"
)

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorPoint is one indexed vector plus the payload retrieval reads back.
type VectorPoint struct {
	ID         string
	Vector     []float32
	FileID     string
	LevelIndex int
	Content    string
}

// VectorStore is a partitioned ANN index. Partitions are created lazily
// per file and dropped when the file is deleted.
type VectorStore interface {
	EnsurePartition(ctx context.Context, partition string, dim int) error
	HasPartition(ctx context.Context, partition string) (bool, error)
	Insert(ctx context.Context, partition string, points []VectorPoint) error
	Search(ctx context.Context, partition string, vector []float32, limit int) ([]SearchResult, error)
	DropPartition(ctx context.Context, partition string) error
	Close() error
}

// FileStore holds durable file and chunk metadata plus the ownership index.
type FileStore interface {
	Insert(ctx context.Context, f *File) error
	Get(ctx context.Context, fileID string) (*File, error)
	Exists(ctx context.Context, fileID string) (bool, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]File, error)
	SetIngestState(ctx context.Context, fileID string, state IngestState, chunkCount int) error
	Delete(ctx context.Context, fileID string) error
	InsertChunks(ctx context.Context, chunks []Chunk) error
}

// SessionStore is an append-only conversation log keyed by session id.
// Appending to an unknown session creates it implicitly.
type SessionStore interface {
	CreateIfAbsent(ctx context.Context, sessionID, ownerID string, fileIDs []string) error
	Append(ctx context.Context, sessionID string, role Role, content string, metadata map[string]any) error
	Recent(ctx context.Context, sessionID string, limit int) ([]Message, error)
	Delete(ctx context.Context, sessionID string) error
}

// Cache is an advisory keyed TTL store. Every operation must remain
// correct when Get always misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Generator is the chat-completion port. Stream invokes fn once per
// delta token in upstream order; a mid-stream transport error is
// returned after the tokens already delivered.
type Generator interface {
	Generate(ctx context.Context, messages []ChatMessage, opts *GenerationOptions) (string, error)
	Stream(ctx context.Context, messages []ChatMessage, opts *GenerationOptions, fn func(token string)) error
}
