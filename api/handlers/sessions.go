package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docaihq/docai/pkg/domain"
)

// SessionsHandler serves session lifecycle endpoints.
type SessionsHandler struct {
	sessions domain.SessionStore
}

func NewSessionsHandler(sessions domain.SessionStore) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

// Delete handles DELETE /v1/sessions/:session_id.
func (h *SessionsHandler) Delete(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	sessionID := c.Param("session_id")
	if err := h.sessions.Delete(c.Request.Context(), sessionID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Session deleted successfully",
		"session_id": sessionID,
	})
}
