package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docaihq/docai/pkg/pipeline"
)

// Asker is the slice of the query pipeline the chat endpoints need.
type Asker interface {
	Ask(ctx context.Context, req pipeline.AskRequest) (<-chan pipeline.Event, error)
	AskSync(ctx context.Context, req pipeline.AskRequest) (*pipeline.CompletePayload, error)
}

type ChatHandler struct {
	pipeline Asker
}

func NewChatHandler(p Asker) *ChatHandler {
	return &ChatHandler{pipeline: p}
}

type chatRequest struct {
	Query           string   `json:"query"`
	SessionID       string   `json:"session_id"`
	FileIDs         []string `json:"file_ids"`
	Language        string   `json:"language,omitempty"`
	TopK            int      `json:"top_k,omitempty"`
	EnableExpansion *bool    `json:"enable_expansion,omitempty"`
	UserID          string   `json:"user_id,omitempty"`
}

// askRequest builds the pipeline request. The owner comes from the
// X-User-ID header, with the body user_id as fallback; either way it is
// validated by the pipeline before any event is emitted.
func (r chatRequest) askRequest(headerUserID string) pipeline.AskRequest {
	ownerID := headerUserID
	if ownerID == "" {
		ownerID = r.UserID
	}
	expansion := true
	if r.EnableExpansion != nil {
		expansion = *r.EnableExpansion
	}
	return pipeline.AskRequest{
		SessionID:       r.SessionID,
		Query:           r.Query,
		FileIDs:         r.FileIDs,
		OwnerID:         ownerID,
		Language:        r.Language,
		TopK:            r.TopK,
		EnableExpansion: expansion,
	}
}

// Chat handles POST /v1/chat: the full pipeline without streaming.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		queriesTotal.WithLabelValues("sync", "error").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION",
			"message": "invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.pipeline.AskSync(c.Request.Context(), req.askRequest(c.GetHeader("X-User-ID")))
	if err != nil {
		queriesTotal.WithLabelValues("sync", "error").Inc()
		abortWithError(c, err)
		return
	}
	queriesTotal.WithLabelValues("sync", "ok").Inc()

	c.JSON(http.StatusOK, gin.H{
		"answer":             result.Answer,
		"session_id":         result.SessionID,
		"context_count":      result.ContextCount,
		"expanded_questions": result.ExpandedQuestions,
		"truncated":          result.Truncated,
	})
}

// ChatStream handles POST /v1/chat/stream: the same pipeline delivered
// as server-sent events. Validation and ownership failures arrive as a
// plain JSON error response; once the stream is open, failures arrive
// as a terminal error event instead.
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		queriesTotal.WithLabelValues("stream", "error").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION",
			"message": "invalid request body: " + err.Error(),
		})
		return
	}

	events, err := h.pipeline.Ask(c.Request.Context(), req.askRequest(c.GetHeader("X-User-ID")))
	if err != nil {
		queriesTotal.WithLabelValues("stream", "error").Inc()
		abortWithError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	status := "ok"
	for ev := range events {
		if !writeSSE(c, ev) {
			status = "cancelled"
			break
		}
		switch ev.Type {
		case pipeline.EventToken:
			streamedTokensTotal.Inc()
		case pipeline.EventError:
			status = "error"
		}
	}
	queriesTotal.WithLabelValues("stream", status).Inc()
}

// writeSSE writes one event frame and flushes it to the client. It
// reports false once the client has gone away.
func writeSSE(c *gin.Context, ev pipeline.Event) bool {
	if c.Request.Context().Err() != nil {
		return false
	}
	data, err := json.Marshal(ev.Data())
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}
