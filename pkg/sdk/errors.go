package docchat

import "github.com/kailas-cloud/docchat/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrExtraction             = domain.ErrExtraction
	ErrChunking               = domain.ErrChunking
	ErrEmbeddingProvider      = domain.ErrEmbeddingProvider
	ErrLanguageModel          = domain.ErrLanguageModel
	ErrExternalServiceTimeout = domain.ErrExternalServiceTimeout
	ErrEmptyIndex             = domain.ErrEmptyIndex
	ErrNoIndex                = domain.ErrNoIndex
	ErrBusy                   = domain.ErrBusy
	ErrSessionNotFound        = domain.ErrSessionNotFound
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrTooManySessions        = domain.ErrTooManySessions
)
