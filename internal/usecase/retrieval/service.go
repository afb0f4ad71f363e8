// Package retrieval finds the passages most relevant to a question.
package retrieval

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/index"
)

// Service embeds queries with the same model the index was built with.
type Service struct {
	embedder domain.Embedder
}

// New creates a retriever.
func New(embedder domain.Embedder) *Service {
	return &Service{embedder: embedder}
}

// Retrieve returns up to k passages from ix ranked by similarity to query.
// An empty index fails before any provider call.
func (s *Service) Retrieve(ctx context.Context, ix *index.Index, query string, k int) ([]chunk.Hit, error) {
	if ix == nil || ix.Len() == 0 {
		return nil, domain.ErrEmptyIndex
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidRequest)
	}

	res, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", domain.AsProviderError(err, domain.ErrEmbeddingProvider))
	}

	hits, err := ix.Search(res.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}
