// Package ingest runs the build phase: load, extract, chunk, embed, index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/document"
	"github.com/kailas-cloud/docchat/internal/domain/index"
	"github.com/kailas-cloud/docchat/internal/logger"
	"github.com/kailas-cloud/docchat/internal/metrics"
	"github.com/kailas-cloud/docchat/internal/parser"
	"github.com/kailas-cloud/docchat/internal/usecase/chunking"
	"github.com/kailas-cloud/docchat/internal/usecase/extract"
)

// Stats describes a built index.
type Stats struct {
	Documents int
	Pages     int
	Chunks    int
}

// Service turns uploads into a ready-to-search index. It holds no per-session state.
type Service struct {
	extractor *extract.Service
	chunker   *chunking.Chunker
	indexer   Indexer
}

// New creates the ingestion pipeline.
func New(extractor *extract.Service, chunker *chunking.Chunker, indexer Indexer) *Service {
	return &Service{extractor: extractor, chunker: chunker, indexer: indexer}
}

// Load detects the format of each upload and splits it into pages.
// Document IDs come from upload names and must be unique within a call.
func (s *Service) Load(raws []document.Raw) ([]document.Document, error) {
	if len(raws) == 0 {
		return nil, fmt.Errorf("no documents: %w", domain.ErrInvalidRequest)
	}

	docs := make([]document.Document, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for i, r := range raws {
		id := r.Name
		if id == "" {
			id = fmt.Sprintf("document-%d", i+1)
		}

		pages, err := parser.Pages(r.Data)
		if err != nil {
			return nil, domain.NewExtractionError(id, err.Error())
		}
		doc, err := document.New(id, pages)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		if _, dup := seen[doc.ID()]; dup {
			return nil, fmt.Errorf("duplicate document %q: %w", doc.ID(), domain.ErrInvalidRequest)
		}
		seen[doc.ID()] = struct{}{}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Build runs the whole pipeline. On any error no index is returned.
func (s *Service) Build(ctx context.Context, raws []document.Raw) (*index.Index, Stats, error) {
	start := time.Now()
	ix, stats, err := s.build(ctx, raws)
	duration := time.Since(start)

	log := logger.FromContext(ctx)
	if err != nil {
		metrics.IngestTotal.WithLabelValues(outcome(err)).Inc()
		log.Warn("Ingestion failed",
			zap.Int("documents", len(raws)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, Stats{}, err
	}

	metrics.IngestTotal.WithLabelValues("success").Inc()
	metrics.IngestDuration.Observe(duration.Seconds())
	metrics.IndexedChunks.Observe(float64(stats.Chunks))
	log.Info("Documents ingested",
		zap.Int("documents", stats.Documents),
		zap.Int("pages", stats.Pages),
		zap.Int("chunks", stats.Chunks),
		zap.Duration("duration", duration),
	)
	return ix, stats, nil
}

func (s *Service) build(ctx context.Context, raws []document.Raw) (*index.Index, Stats, error) {
	docs, err := s.Load(raws)
	if err != nil {
		return nil, Stats{}, err
	}

	texts, err := s.extractor.Extract(docs)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("extract: %w", err)
	}

	stats := Stats{Documents: len(texts)}
	var chunks []chunk.Chunk
	for _, t := range texts {
		stats.Pages += t.Pages
		chunks = append(chunks, s.chunker.Chunks(t.DocumentID, t.Content)...)
	}
	stats.Chunks = len(chunks)

	if err := ctx.Err(); err != nil {
		return nil, Stats{}, fmt.Errorf("ingest: %w", err)
	}

	ix, err := s.indexer.Build(ctx, chunks)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("index: %w", err)
	}
	return ix, stats, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrExtraction):
		return "extraction_error"
	case errors.Is(err, domain.ErrExternalServiceTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrEmbeddingProvider):
		return "embedding_error"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "error"
	}
}
