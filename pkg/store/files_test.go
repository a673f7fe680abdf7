package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docaihq/docai/pkg/domain"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(testDB(t))
	require.NoError(t, err)
	return s
}

func sampleFile(id, owner string, uploadedAt time.Time) *domain.File {
	return &domain.File{
		FileID:      id,
		OwnerID:     owner,
		Filename:    "doc.txt",
		ContentType: "txt",
		SizeBytes:   128,
		UploadedAt:  uploadedAt,
		IngestState: domain.IngestPending,
		Partition:   domain.PartitionName(id),
	}
}

func TestFileStoreInsertAndGet(t *testing.T) {
	s := testFileStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.Insert(ctx, sampleFile("file_1", "owner-1", now)))

	got, err := s.Get(ctx, "file_1")
	require.NoError(t, err)
	assert.Equal(t, "file_1", got.FileID)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, "doc.txt", got.Filename)
	assert.Equal(t, int64(128), got.SizeBytes)
	assert.Equal(t, now, got.UploadedAt)
	assert.Equal(t, domain.IngestPending, got.IngestState)
	assert.Equal(t, "file_file_1", got.Partition)
}

func TestFileStoreGetNotFound(t *testing.T) {
	s := testFileStore(t)
	_, err := s.Get(context.Background(), "file_missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileStoreInsertDuplicate(t *testing.T) {
	s := testFileStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Insert(ctx, sampleFile("file_1", "owner-1", now)))
	err := s.Insert(ctx, sampleFile("file_1", "owner-1", now))
	require.ErrorIs(t, err, domain.ErrPersistenceFailed)
}

func TestFileStoreExists(t *testing.T) {
	s := testFileStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "file_1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Insert(ctx, sampleFile("file_1", "owner-1", time.Now())))
	ok, err = s.Exists(ctx, "file_1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStoreListByOwner(t *testing.T) {
	s := testFileStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 5; i++ {
		f := sampleFile(fmt.Sprintf("file_%d", i), "owner-1", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Insert(ctx, f))
	}
	require.NoError(t, s.Insert(ctx, sampleFile("file_other", "owner-2", base)))

	files, err := s.ListByOwner(ctx, "owner-1", 3, 0)
	require.NoError(t, err)
	require.Len(t, files, 3)
	// Newest first.
	assert.Equal(t, "file_4", files[0].FileID)
	assert.Equal(t, "file_3", files[1].FileID)
	assert.Equal(t, "file_2", files[2].FileID)

	files, err = s.ListByOwner(ctx, "owner-1", 3, 3)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "file_1", files[0].FileID)

	files, err = s.ListByOwner(ctx, "owner-nobody", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFileStoreSetIngestState(t *testing.T) {
	s := testFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, sampleFile("file_1", "owner-1", time.Now())))
	require.NoError(t, s.SetIngestState(ctx, "file_1", domain.IngestCompleted, 42))

	got, err := s.Get(ctx, "file_1")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestCompleted, got.IngestState)
	assert.Equal(t, 42, got.ChunkCount)

	err = s.SetIngestState(ctx, "file_missing", domain.IngestFailed, 0)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileStoreDeleteCascadesChunks(t *testing.T) {
	s := testFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, sampleFile("file_1", "owner-1", time.Now())))
	require.NoError(t, s.InsertChunks(ctx, []domain.Chunk{
		{ID: "c1", FileID: "file_1", Level: 0, LevelIndex: 0, Content: "parent"},
		{ID: "c2", FileID: "file_1", Level: 1, LevelIndex: 0, ParentChunkID: "c1", Content: "child"},
	}))

	require.NoError(t, s.Delete(ctx, "file_1"))

	_, err := s.Get(ctx, "file_1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE file_id = 'file_1'`).Scan(&count))
	assert.Zero(t, count)
}

func TestFileStoreDeleteNotFound(t *testing.T) {
	s := testFileStore(t)
	err := s.Delete(context.Background(), "file_missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileStoreInsertChunksEmpty(t *testing.T) {
	s := testFileStore(t)
	require.NoError(t, s.InsertChunks(context.Background(), nil))
}

func TestFileStoreInsertChunksNullParent(t *testing.T) {
	s := testFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, sampleFile("file_1", "owner-1", time.Now())))
	require.NoError(t, s.InsertChunks(ctx, []domain.Chunk{
		{ID: "c1", FileID: "file_1", Content: "top level", TokenEstimate: 3},
	}))

	var parent sql.NullString
	require.NoError(t, s.db.QueryRow(`SELECT parent_chunk_id FROM chunks WHERE chunk_id = 'c1'`).Scan(&parent))
	assert.False(t, parent.Valid)
}
