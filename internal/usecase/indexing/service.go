// Package indexing embeds chunks and builds the immutable search index.
package indexing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/index"
)

// Service builds indexes. Sub-batching and per-call deadlines live in the embedder chain.
type Service struct {
	embedder   domain.Embedder
	dimensions int
	logger     *zap.Logger
}

// New creates an index builder. dimensions > 0 pins the expected vector size;
// 0 accepts whatever the provider returns as long as it is consistent.
func New(embedder domain.Embedder, dimensions int, logger *zap.Logger) *Service {
	return &Service{embedder: embedder, dimensions: dimensions, logger: logger}
}

// Build embeds every chunk text and returns a new index.
// Nothing is returned unless every chunk got a vector of the expected size.
func (s *Service) Build(ctx context.Context, chunks []chunk.Chunk) (*index.Index, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	start := time.Now()
	res, err := domain.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", domain.AsProviderError(err, domain.ErrEmbeddingProvider))
	}
	if len(res.Embeddings) != len(chunks) {
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(chunks), len(res.Embeddings), domain.ErrEmbeddingProvider)
	}
	if _, err := domain.CheckDimensions(res.Embeddings, s.dimensions); err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = index.Entry{Chunk: c, Vector: res.Embeddings[i]}
	}
	ix, err := index.New(entries)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	s.logger.Debug("Index built",
		zap.Int("chunks", ix.Len()),
		zap.Int("dimensions", ix.Dimension()),
		zap.Int("total_tokens", res.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return ix, nil
}
