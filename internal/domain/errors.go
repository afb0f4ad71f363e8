package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrExtraction signals an unreadable, corrupted or empty document.
	ErrExtraction = errors.New("extraction failed")
	// ErrChunking signals an invalid chunker configuration.
	ErrChunking = errors.New("invalid chunking parameters")
	// ErrEmbeddingProvider signals an embedding service failure or a malformed embedding response.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrLanguageModel signals a language model failure or an empty answer.
	ErrLanguageModel = errors.New("language model error")
	// ErrExternalServiceTimeout signals that an external call exceeded its deadline.
	ErrExternalServiceTimeout = errors.New("external service timeout")
	// ErrEmptyIndex signals a search against an index without chunks.
	ErrEmptyIndex = errors.New("index is empty")
	// ErrNoIndex signals a question asked before any successful ingestion.
	ErrNoIndex = errors.New("no documents ingested")
	// ErrBusy signals that the session is already answering or ingesting.
	ErrBusy = errors.New("session is busy")
	// ErrSessionNotFound signals an unknown or expired session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidRequest signals malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTooManySessions signals that the session cap has been reached.
	ErrTooManySessions = errors.New("too many sessions")
)

// ExtractionError names the document that failed extraction.
type ExtractionError struct {
	DocumentID string
	Reason     string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: document %q: %s", ErrExtraction.Error(), e.DocumentID, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// NewExtractionError creates an extraction error for the given document.
func NewExtractionError(documentID, reason string) error {
	return &ExtractionError{DocumentID: documentID, Reason: reason}
}

// ClassifyTimeout marks errors caused by an expired deadline with ErrExternalServiceTimeout.
// Other errors, including caller cancellation, are returned unchanged.
func ClassifyTimeout(err error) error {
	if err == nil || errors.Is(err, ErrExternalServiceTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrExternalServiceTimeout, err)
}

// AsProviderError makes sure a failed external call matches sentinel unless it is
// already a timeout, a caller cancellation, or tagged with sentinel.
func AsProviderError(err, sentinel error) error {
	err = ClassifyTimeout(err)
	switch {
	case err == nil,
		errors.Is(err, sentinel),
		errors.Is(err, ErrExternalServiceTimeout),
		errors.Is(err, context.Canceled):
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
