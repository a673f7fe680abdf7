package domain

import "time"

// IngestState tracks a file through the ingest pipeline.
type IngestState string

const (
	IngestPending   IngestState = "pending"
	IngestCompleted IngestState = "completed"
	IngestFailed    IngestState = "failed"
)

// File is the metadata row recorded for every uploaded document.
type File struct {
	FileID      string      `json:"file_id"`
	OwnerID     string      `json:"user_id"`
	Filename    string      `json:"filename"`
	ContentType string      `json:"file_type"`
	SizeBytes   int64       `json:"file_size"`
	UploadedAt  time.Time   `json:"upload_time"`
	ChunkCount  int         `json:"chunk_count"`
	IngestState IngestState `json:"embedding_status"`
	Partition   string      `json:"-"`
}

// Chunk is a contiguous text span produced by the chunker, the unit of
// vector indexing. Level 0 is the parent level; every chunk below it
// carries a ParentChunkID into the level above.
type Chunk struct {
	ID            string
	FileID        string
	Level         int
	LevelIndex    int
	ParentChunkID string
	Content       string
	TokenEstimate int
	Vector        []float32
}

// SearchResult is one ranked hit from the vector store. Score is L2
// distance, lower is better.
type SearchResult struct {
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
	FileID     string  `json:"file_id"`
	LevelIndex int     `json:"level_index"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a session's append-only log.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type Session struct {
	SessionID string    `json:"session_id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	FileIDs   []string  `json:"file_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is the shape consumed by the LLM port.
type ChatMessage struct {
	Role    Role
	Content string
}

type GenerationOptions struct {
	Temperature float64
	MaxTokens   int
}

// PartitionName returns the vector partition assigned to a file.
func PartitionName(fileID string) string {
	return "file_" + fileID
}
