package domain

import (
	"context"
	"sync/atomic"
)

type usageKey struct{}

// Usage collects token usage for a single request.
// The HTTP handler puts a pointer into the context, the pipeline adds to it,
// and the handler reports it in response headers. Safe for concurrent use.
type Usage struct {
	embeddingTokens  atomic.Int64
	generationTokens atomic.Int64
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext returns the collector from ctx, or nil.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbeddingTokens records tokens spent on embeddings. Nil-safe.
func (u *Usage) AddEmbeddingTokens(n int) {
	if u != nil {
		u.embeddingTokens.Add(int64(n))
	}
}

// AddGenerationTokens records tokens spent on answer generation. Nil-safe.
func (u *Usage) AddGenerationTokens(n int) {
	if u != nil {
		u.generationTokens.Add(int64(n))
	}
}

// EmbeddingTokens returns the embedding token total.
func (u *Usage) EmbeddingTokens() int64 { return u.embeddingTokens.Load() }

// GenerationTokens returns the generation token total.
func (u *Usage) GenerationTokens() int64 { return u.generationTokens.Load() }
