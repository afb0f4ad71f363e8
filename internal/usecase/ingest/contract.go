package ingest

import (
	"context"

	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/index"
)

// Indexer embeds chunks and builds an index.
type Indexer interface {
	Build(ctx context.Context, chunks []chunk.Chunk) (*index.Index, error)
}
