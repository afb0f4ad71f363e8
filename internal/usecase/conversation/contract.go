package conversation

import (
	"context"

	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/document"
	"github.com/kailas-cloud/docchat/internal/domain/index"
	"github.com/kailas-cloud/docchat/internal/usecase/ingest"
)

// IndexBuilder runs the ingestion pipeline.
type IndexBuilder interface {
	Build(ctx context.Context, raws []document.Raw) (*index.Index, ingest.Stats, error)
}

// Retriever finds passages for a question.
type Retriever interface {
	Retrieve(ctx context.Context, ix *index.Index, query string, k int) ([]chunk.Hit, error)
}
