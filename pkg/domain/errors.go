package domain

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrExtractionFailed  = errors.New("text extraction failed")
	ErrEmbeddingFailed   = errors.New("embedding generation failed")
	ErrIndexFailed       = errors.New("vector index operation failed")
	ErrGenerationFailed  = errors.New("text generation failed")
	ErrPersistenceFailed = errors.New("persistence operation failed")
	ErrInternal          = errors.New("internal error")
)

// ErrorCode maps a pipeline error to its wire-level code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "VALIDATION"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrExtractionFailed):
		return "EXTRACTION_FAILED"
	case errors.Is(err, ErrEmbeddingFailed):
		return "EMBEDDING_FAILED"
	case errors.Is(err, ErrIndexFailed):
		return "INDEX_FAILED"
	case errors.Is(err, ErrGenerationFailed):
		return "LLM_FAILED"
	case errors.Is(err, ErrPersistenceFailed):
		return "PERSISTENCE_FAILED"
	default:
		return "INTERNAL"
	}
}

// SentinelForCode is the inverse of ErrorCode, used when an error has
// crossed an event-stream boundary as a bare code string.
func SentinelForCode(code string) error {
	switch code {
	case "VALIDATION":
		return ErrInvalidInput
	case "FORBIDDEN":
		return ErrForbidden
	case "NOT_FOUND":
		return ErrNotFound
	case "EXTRACTION_FAILED":
		return ErrExtractionFailed
	case "EMBEDDING_FAILED":
		return ErrEmbeddingFailed
	case "INDEX_FAILED":
		return ErrIndexFailed
	case "LLM_FAILED":
		return ErrGenerationFailed
	case "PERSISTENCE_FAILED":
		return ErrPersistenceFailed
	default:
		return ErrInternal
	}
}
