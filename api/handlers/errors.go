package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docaihq/docai/pkg/domain"
)

// errorStatus maps a pipeline error to its HTTP status and wire code.
func errorStatus(err error) (int, string) {
	code := domain.ErrorCode(err)
	switch code {
	case "VALIDATION", "EXTRACTION_FAILED":
		return http.StatusBadRequest, code
	case "FORBIDDEN":
		return http.StatusForbidden, code
	case "NOT_FOUND":
		return http.StatusNotFound, code
	case "EMBEDDING_FAILED", "INDEX_FAILED", "LLM_FAILED":
		return http.StatusServiceUnavailable, code
	default:
		return http.StatusInternalServerError, code
	}
}

func abortWithError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	c.JSON(status, gin.H{
		"error":   code,
		"message": err.Error(),
	})
}

// requireUserID extracts and validates the X-User-ID header. A missing
// or malformed id ends the request with 400.
func requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-ID")
	if !domain.ValidUserID(userID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION",
			"message": "Invalid user_id format. Must be UUID v4.",
		})
		return "", false
	}
	return userID, true
}
