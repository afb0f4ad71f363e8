// Package embedding decorates embedding providers with sub-batching, deadlines and logging.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docchat/internal/domain"
)

// DefaultMaxAPIBatchSize is the maximum number of texts sent in one provider request.
const DefaultMaxAPIBatchSize = 256

// Options tunes an InstrumentedEmbedder.
type Options struct {
	Provider    string
	Model       string
	BatchSize   int           // texts per provider call; DefaultMaxAPIBatchSize when <= 0
	Concurrency int           // sub-batches in flight; 1 when <= 0
	Timeout     time.Duration // deadline per provider call; none when <= 0
}

// InstrumentedEmbedder wraps an Embedder with per-call deadlines, sub-batching and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
// Tokens are also added to the request's domain.Usage when one is in the context.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	opts   Options
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps inner.
func NewInstrumentedEmbedder(inner domain.Embedder, opts Options, logger *zap.Logger) *InstrumentedEmbedder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultMaxAPIBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &InstrumentedEmbedder{inner: inner, opts: opts, logger: logger}
}

// Embed delegates to the inner embedder under the configured deadline.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	callCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	result, err := p.inner.Embed(callCtx, text)
	duration := time.Since(start)

	if err != nil {
		err = domain.ClassifyTimeout(err)
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.opts.Provider),
			zap.String("model", p.opts.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	domain.UsageFromContext(ctx).AddEmbeddingTokens(result.TotalTokens)

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.opts.Provider),
		zap.String("model", p.opts.Model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed splits texts into sub-batches and embeds them concurrently.
// Results keep input order. Any failed sub-batch fails the whole call.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()

	batches := (len(texts) + p.opts.BatchSize - 1) / p.opts.BatchSize
	embeddings := make([][]float32, len(texts))
	prompt := make([]int, batches)
	total := make([]int, batches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for slot := range batches {
		offset := slot * p.opts.BatchSize
		end := min(offset+p.opts.BatchSize, len(texts))

		g.Go(func() error {
			res, err := p.embedInner(gctx, texts[offset:end])
			if err != nil {
				p.logger.Error("Batch embedding request failed",
					zap.String("provider", p.opts.Provider),
					zap.String("model", p.opts.Model),
					zap.Int("chunk_offset", offset),
					zap.Int("chunk_size", end-offset),
					zap.Error(err),
				)
				return err
			}
			if len(res.Embeddings) != end-offset {
				return fmt.Errorf("sub-batch at %d: expected %d embeddings, got %d: %w",
					offset, end-offset, len(res.Embeddings), domain.ErrEmbeddingProvider)
			}
			copy(embeddings[offset:end], res.Embeddings)
			prompt[slot] = res.PromptTokens
			total[slot] = res.TotalTokens
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}

	result := domain.BatchEmbeddingResult{Embeddings: embeddings}
	for i := range batches {
		result.PromptTokens += prompt[i]
		result.TotalTokens += total[i]
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(result.TotalTokens)

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.opts.Provider),
		zap.String("model", p.opts.Model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("sub_batches", batches),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := p.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding health: %w", domain.ClassifyTimeout(err))
	}
	return nil
}

func (p *InstrumentedEmbedder) embedInner(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	res, err := domain.EmbedAll(ctx, p.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch embed: %w", domain.ClassifyTimeout(err))
	}
	return res, nil
}

func (p *InstrumentedEmbedder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.opts.Timeout)
}
