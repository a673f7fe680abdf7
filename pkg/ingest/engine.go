package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"time"

	"github.com/docaihq/docai/pkg/domain"
	"github.com/docaihq/docai/pkg/log"
)

type Options struct {
	UploadDir         string
	MaxSizeBytes      int64
	AllowedExtensions []string
	EmbeddingDim      int
}

// Engine runs the ingest pipeline: validate, extract, chunk, embed,
// index, record. One Ingest call is one task; calls for different files
// share no mutable state.
type Engine struct {
	files    domain.FileStore
	vectors  domain.VectorStore
	embedder domain.Embedder
	chunker  Chunker
	opts     Options
	logger   *slog.Logger
}

func NewEngine(files domain.FileStore, vectors domain.VectorStore, embedder domain.Embedder, chunker Chunker, opts Options) *Engine {
	return &Engine{
		files:    files,
		vectors:  vectors,
		embedder: embedder,
		chunker:  chunker,
		opts:     opts,
		logger:   log.WithModule("ingest"),
	}
}

type Result struct {
	FileID          string             `json:"file_id"`
	Filename        string             `json:"filename"`
	FileSize        int64              `json:"file_size"`
	ChunkCount      int                `json:"chunk_count"`
	EmbeddingStatus domain.IngestState `json:"embedding_status"`
	Strategy        string             `json:"strategy"`
}

// Ingest processes one uploaded document end to end. Validation
// failures surface before any state is written; failures after the file
// row exists leave it marked failed.
func (e *Engine) Ingest(ctx context.Context, ownerID, filename string, data []byte) (*Result, error) {
	if !domain.ValidUserID(ownerID) {
		return nil, fmt.Errorf("%w: user id must be a UUID v4", domain.ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}
	if e.opts.MaxSizeBytes > 0 && int64(len(data)) > e.opts.MaxSizeBytes {
		return nil, fmt.Errorf("%w: file exceeds maximum size of %d bytes", domain.ErrInvalidInput, e.opts.MaxSizeBytes)
	}
	ext, ok := e.allowedExtension(filename)
	if !ok {
		return nil, fmt.Errorf("%w: extension not allowed (allowed: %s)", domain.ErrInvalidInput, strings.Join(e.opts.AllowedExtensions, ", "))
	}

	fileID, err := e.uniqueFileID(ctx, data)
	if err != nil {
		return nil, err
	}

	file := &domain.File{
		FileID:      fileID,
		OwnerID:     ownerID,
		Filename:    filename,
		ContentType: ext,
		SizeBytes:   int64(len(data)),
		UploadedAt:  time.Now().UTC(),
		IngestState: domain.IngestPending,
		Partition:   domain.PartitionName(fileID),
	}
	if err := e.files.Insert(ctx, file); err != nil {
		return nil, err
	}
	e.saveBlob(fileID, ext, data)

	text, err := Extract(filename, data)
	if err != nil {
		e.markFailed(fileID)
		return nil, err
	}

	chunks := e.chunker.Chunk(fileID, text)
	if len(chunks) == 0 {
		e.markFailed(fileID)
		return nil, fmt.Errorf("%w: document produced no chunks", domain.ErrExtractionFailed)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		e.markFailed(fileID)
		return nil, err
	}

	dim := e.opts.EmbeddingDim
	if len(vectors) > 0 && len(vectors[0]) > 0 {
		dim = len(vectors[0])
	}
	if err := e.vectors.EnsurePartition(ctx, file.Partition, dim); err != nil {
		e.markFailed(fileID)
		return nil, err
	}

	points := make([]domain.VectorPoint, len(chunks))
	for i, c := range chunks {
		points[i] = domain.VectorPoint{
			ID:         c.ID,
			Vector:     vectors[i],
			FileID:     fileID,
			LevelIndex: c.LevelIndex,
			Content:    c.Content,
		}
	}
	if err := e.vectors.Insert(ctx, file.Partition, points); err != nil {
		e.markFailed(fileID)
		return nil, err
	}

	if err := e.files.InsertChunks(ctx, chunks); err != nil {
		e.markFailed(fileID)
		return nil, err
	}
	if err := e.files.SetIngestState(ctx, fileID, domain.IngestCompleted, len(chunks)); err != nil {
		return nil, err
	}

	e.logger.Info("file ingested",
		"file_id", fileID,
		"owner_id", ownerID,
		"chunks", len(chunks),
		"strategy", e.chunker.Strategy())

	return &Result{
		FileID:          fileID,
		Filename:        filename,
		FileSize:        int64(len(data)),
		ChunkCount:      len(chunks),
		EmbeddingStatus: domain.IngestCompleted,
		Strategy:        e.chunker.Strategy(),
	}, nil
}

// Delete removes a file the requester owns, cascading to the vector
// partition, the metadata rows and the on-disk blob.
func (e *Engine) Delete(ctx context.Context, requesterID, fileID string) error {
	if !domain.ValidUserID(requesterID) {
		return fmt.Errorf("%w: user id must be a UUID v4", domain.ErrInvalidInput)
	}

	file, err := e.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if file.OwnerID != requesterID {
		e.logger.Warn("delete refused", "file_id", fileID, "requester", requesterID)
		return fmt.Errorf("%w: only the owner can delete a file", domain.ErrForbidden)
	}

	if err := e.vectors.DropPartition(ctx, file.Partition); err != nil {
		return err
	}
	if err := e.files.Delete(ctx, fileID); err != nil {
		return err
	}
	e.removeBlob(fileID, file.ContentType)

	e.logger.Info("file deleted", "file_id", fileID, "owner_id", requesterID)
	return nil
}

// List returns the requester's files, newest first.
func (e *Engine) List(ctx context.Context, ownerID string, limit, offset int) ([]domain.File, error) {
	if !domain.ValidUserID(ownerID) {
		return nil, fmt.Errorf("%w: user id must be a UUID v4", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return e.files.ListByOwner(ctx, ownerID, limit, offset)
}

func (e *Engine) allowedExtension(filename string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		return "", false
	}
	for _, allowed := range e.opts.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return ext, true
		}
	}
	return "", false
}

// markFailed runs on its own context so the marker lands even when the
// request context is already cancelled.
func (e *Engine) markFailed(fileID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.files.SetIngestState(ctx, fileID, domain.IngestFailed, 0); err != nil {
		e.logger.Error("failed to mark file as failed", "file_id", fileID, "error", err)
	}
}

func (e *Engine) blobPath(fileID, ext string) string {
	return filepath.Join(e.opts.UploadDir, fileID+"."+ext)
}

func (e *Engine) saveBlob(fileID, ext string, data []byte) {
	if e.opts.UploadDir == "" {
		return
	}
	if err := os.MkdirAll(e.opts.UploadDir, 0755); err != nil {
		e.logger.Warn("failed to create upload directory", "dir", e.opts.UploadDir, "error", err)
		return
	}
	if err := os.WriteFile(e.blobPath(fileID, ext), data, 0644); err != nil {
		e.logger.Warn("failed to persist upload blob", "file_id", fileID, "error", err)
	}
}

func (e *Engine) removeBlob(fileID, ext string) {
	if e.opts.UploadDir == "" {
		return
	}
	if err := os.Remove(e.blobPath(fileID, ext)); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("failed to remove upload blob", "file_id", fileID, "error", err)
	}
}
