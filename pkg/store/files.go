package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/docaihq/docai/pkg/domain"
)

// FileStore persists file and chunk metadata rows in SQLite and serves
// as the ownership index.
type FileStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writes
}

func NewFileStore(db *sql.DB) (*FileStore, error) {
	s := &FileStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize file schema: %w", err)
	}
	return s, nil
}

func (s *FileStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		file_id      TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		filename     TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size_bytes   INTEGER NOT NULL,
		uploaded_at  INTEGER NOT NULL,
		chunk_count  INTEGER NOT NULL DEFAULT 0,
		ingest_state TEXT NOT NULL,
		partition    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_files_owner ON files(owner_id, uploaded_at DESC);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id        TEXT PRIMARY KEY,
		file_id         TEXT NOT NULL,
		level           INTEGER NOT NULL,
		level_index     INTEGER NOT NULL,
		parent_chunk_id TEXT,
		content         TEXT NOT NULL,
		token_estimate  INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_id, level, level_index);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *FileStore) Insert(ctx context.Context, f *domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (file_id, owner_id, filename, content_type, size_bytes, uploaded_at, chunk_count, ingest_state, partition)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FileID, f.OwnerID, f.Filename, f.ContentType, f.SizeBytes,
		f.UploadedAt.Unix(), f.ChunkCount, string(f.IngestState), f.Partition,
	)
	if err != nil {
		return fmt.Errorf("%w: insert file: %v", domain.ErrPersistenceFailed, err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, fileID string) (*domain.File, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT file_id, owner_id, filename, content_type, size_bytes, uploaded_at, chunk_count, ingest_state, partition
		FROM files WHERE file_id = ?`, fileID)

	var f domain.File
	var uploadedAt int64
	var state string
	err := row.Scan(&f.FileID, &f.OwnerID, &f.Filename, &f.ContentType,
		&f.SizeBytes, &uploadedAt, &f.ChunkCount, &state, &f.Partition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get file: %v", domain.ErrPersistenceFailed, err)
	}
	f.UploadedAt = time.Unix(uploadedAt, 0).UTC()
	f.IngestState = domain.IngestState(state)
	return &f, nil
}

func (s *FileStore) Exists(ctx context.Context, fileID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM files WHERE file_id = ?`, fileID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: exists: %v", domain.ErrPersistenceFailed, err)
	}
	return true, nil
}

// ListByOwner returns the owner's files newest first.
func (s *FileStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.File, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_id, owner_id, filename, content_type, size_bytes, uploaded_at, chunk_count, ingest_state, partition
		FROM files WHERE owner_id = ?
		ORDER BY uploaded_at DESC, file_id DESC
		LIMIT ? OFFSET ?`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list files: %v", domain.ErrPersistenceFailed, err)
	}
	defer rows.Close()

	var files []domain.File
	for rows.Next() {
		var f domain.File
		var uploadedAt int64
		var state string
		if err := rows.Scan(&f.FileID, &f.OwnerID, &f.Filename, &f.ContentType,
			&f.SizeBytes, &uploadedAt, &f.ChunkCount, &state, &f.Partition); err != nil {
			return nil, fmt.Errorf("%w: scan file: %v", domain.ErrPersistenceFailed, err)
		}
		f.UploadedAt = time.Unix(uploadedAt, 0).UTC()
		f.IngestState = domain.IngestState(state)
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list files: %v", domain.ErrPersistenceFailed, err)
	}
	return files, nil
}

func (s *FileStore) SetIngestState(ctx context.Context, fileID string, state domain.IngestState, chunkCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET ingest_state = ?, chunk_count = ? WHERE file_id = ?`,
		string(state), chunkCount, fileID)
	if err != nil {
		return fmt.Errorf("%w: update ingest state: %v", domain.ErrPersistenceFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: file %s", domain.ErrNotFound, fileID)
	}
	return nil
}

// Delete removes a file row and its chunk rows in one transaction.
func (s *FileStore) Delete(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin delete: %v", domain.ErrPersistenceFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("%w: delete chunks: %v", domain.ErrPersistenceFailed, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM files WHERE file_id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("%w: delete file: %v", domain.ErrPersistenceFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: file %s", domain.ErrNotFound, fileID)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit delete: %v", domain.ErrPersistenceFailed, err)
	}
	return nil
}

func (s *FileStore) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin insert chunks: %v", domain.ErrPersistenceFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, file_id, level, level_index, parent_chunk_id, content, token_estimate)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert chunks: %v", domain.ErrPersistenceFailed, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		parent := sql.NullString{String: c.ParentChunkID, Valid: c.ParentChunkID != ""}
		if _, err := stmt.ExecContext(ctx, c.ID, c.FileID, c.Level, c.LevelIndex, parent, c.Content, c.TokenEstimate); err != nil {
			return fmt.Errorf("%w: insert chunk %s: %v", domain.ErrPersistenceFailed, c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit chunks: %v", domain.ErrPersistenceFailed, err)
	}
	return nil
}
