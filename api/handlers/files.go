package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/docaihq/docai/pkg/domain"
	"github.com/docaihq/docai/pkg/ingest"
)

// Ingestor is the slice of the ingest engine the file endpoints need.
type Ingestor interface {
	Ingest(ctx context.Context, ownerID, filename string, data []byte) (*ingest.Result, error)
	Delete(ctx context.Context, requesterID, fileID string) error
	List(ctx context.Context, ownerID string, limit, offset int) ([]domain.File, error)
}

type FilesHandler struct {
	engine  Ingestor
	maxSize int64
}

func NewFilesHandler(engine Ingestor, maxSize int64) *FilesHandler {
	return &FilesHandler{engine: engine, maxSize: maxSize}
}

// Upload handles POST /v1/upload: a multipart form with field "file",
// ingested synchronously under the X-User-ID owner.
func (h *FilesHandler) Upload(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION",
			"message": "multipart field 'file' is required",
		})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION",
			"message": "failed to read uploaded file",
		})
		return
	}
	defer src.Close()

	// Read one byte past the limit so oversize uploads fail validation
	// instead of being silently truncated.
	data, err := io.ReadAll(io.LimitReader(src, h.maxSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION",
			"message": "failed to read uploaded file",
		})
		return
	}

	result, err := h.engine.Ingest(c.Request.Context(), userID, fileHeader.Filename, data)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		abortWithError(c, err)
		return
	}
	uploadsTotal.WithLabelValues("ok").Inc()

	c.JSON(http.StatusOK, gin.H{
		"file_id":          result.FileID,
		"filename":         result.Filename,
		"file_size":        result.FileSize,
		"chunk_count":      result.ChunkCount,
		"embedding_status": result.EmbeddingStatus,
		"message":          fmt.Sprintf("File uploaded and indexed successfully using %s chunking", result.Strategy),
	})
}

// List handles GET /v1/files: the requester's files, newest first.
func (h *FilesHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	files, err := h.engine.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if files == nil {
		files = []domain.File{}
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"files":   files,
		"count":   len(files),
		"limit":   limit,
		"offset":  offset,
	})
}

// Delete handles DELETE /v1/files/:file_id, owner only.
func (h *FilesHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fileID := c.Param("file_id")
	if err := h.engine.Delete(c.Request.Context(), userID, fileID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "File deleted successfully",
		"file_id": fileID,
	})
}
