package embedding

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
)

// mockEmbedder returns a vector whose first element encodes the input text length.
type mockEmbedder struct {
	tokens     int
	err        error
	failOn     string
	delay      time.Duration
	batchCalls atomic.Int32
	inFlight   atomic.Int32
	maxFlight  atomic.Int32

	mu      sync.Mutex
	batches [][]string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := m.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0], PromptTokens: m.tokens, TotalTokens: m.tokens}, nil
}

func (m *mockEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxFlight.Load()
		if n <= cur || m.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	m.mu.Lock()
	m.batches = append(m.batches, slices.Clone(texts))
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return domain.BatchEmbeddingResult{}, ctx.Err()
		}
	}
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	if m.failOn != "" && slices.Contains(texts, m.failOn) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("provider rejected input: %w", domain.ErrEmbeddingProvider)
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   out,
		PromptTokens: m.tokens * len(texts),
		TotalTokens:  m.tokens * len(texts),
	}, nil
}

// plainMockEmbedder implements only Embedder, not BatchEmbedder.
type plainMockEmbedder struct {
	result domain.EmbeddingResult
	calls  atomic.Int32
}

func (m *plainMockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	return m.result, nil
}

func TestInstrumentedEmbedder_Embed(t *testing.T) {
	inner := &mockEmbedder{tokens: 100}
	p := NewInstrumentedEmbedder(inner, Options{Provider: "test", Model: "m"}, zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	result, err := p.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 5 {
		t.Errorf("unexpected vector %v", result.Embedding)
	}
	if usage.EmbeddingTokens() != 100 {
		t.Errorf("expected 100 tokens in usage, got %d", usage.EmbeddingTokens())
	}
}

func TestInstrumentedEmbedder_EmbedError(t *testing.T) {
	inner := &mockEmbedder{err: fmt.Errorf("api error: %w", domain.ErrEmbeddingProvider)}
	p := NewInstrumentedEmbedder(inner, Options{}, zap.NewNop())

	_, err := p.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
}

func TestInstrumentedEmbedder_EmbedTimeout(t *testing.T) {
	inner := &mockEmbedder{delay: time.Second}
	p := NewInstrumentedEmbedder(inner, Options{Timeout: 10 * time.Millisecond}, zap.NewNop())

	_, err := p.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrExternalServiceTimeout) {
		t.Fatalf("expected ErrExternalServiceTimeout, got %v", err)
	}
}

func TestInstrumentedEmbedder_CallerCancelIsNotTimeout(t *testing.T) {
	inner := &mockEmbedder{delay: time.Second}
	p := NewInstrumentedEmbedder(inner, Options{Timeout: time.Minute}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Embed(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrExternalServiceTimeout) {
		t.Error("cancellation must not be reported as a timeout")
	}
}

func TestInstrumentedEmbedder_BatchEmbed_SubBatchesKeepOrder(t *testing.T) {
	inner := &mockEmbedder{tokens: 1}
	p := NewInstrumentedEmbedder(inner, Options{BatchSize: 2, Concurrency: 3}, zap.NewNop())

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := p.BatchEmbed(ctx, texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inner.batchCalls.Load(); got != 3 {
		t.Errorf("expected 3 sub-batches, got %d", got)
	}
	for i, v := range res.Embeddings {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("embedding %d out of order: %v", i, v)
		}
	}
	if res.TotalTokens != 5 || usage.EmbeddingTokens() != 5 {
		t.Errorf("expected 5 tokens, got result=%d usage=%d", res.TotalTokens, usage.EmbeddingTokens())
	}
	for _, b := range inner.batches {
		if len(b) > 2 {
			t.Errorf("sub-batch larger than batch size: %v", b)
		}
	}
}

func TestInstrumentedEmbedder_BatchEmbed_ConcurrencyLimit(t *testing.T) {
	inner := &mockEmbedder{delay: 20 * time.Millisecond}
	p := NewInstrumentedEmbedder(inner, Options{BatchSize: 1, Concurrency: 2}, zap.NewNop())

	if _, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c", "d", "e", "f"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inner.maxFlight.Load(); got > 2 {
		t.Errorf("expected at most 2 concurrent calls, saw %d", got)
	}
}

func TestInstrumentedEmbedder_BatchEmbed_AllOrNothing(t *testing.T) {
	inner := &mockEmbedder{failOn: "bad"}
	p := NewInstrumentedEmbedder(inner, Options{BatchSize: 1, Concurrency: 4}, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b", "bad", "c"})
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
	if res.Embeddings != nil {
		t.Errorf("expected no embeddings on failure, got %d", len(res.Embeddings))
	}
}

func TestInstrumentedEmbedder_BatchEmbed_Empty(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, Options{}, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil {
		t.Errorf("expected nil for empty input")
	}
	if inner.batchCalls.Load() != 0 {
		t.Error("expected no provider calls")
	}
}

func TestInstrumentedEmbedder_BatchEmbed_FallbackToSingle(t *testing.T) {
	inner := &plainMockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1},
		PromptTokens: 5,
		TotalTokens:  5,
	}}
	p := NewInstrumentedEmbedder(inner, Options{}, zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	if inner.calls.Load() != 2 {
		t.Errorf("expected 2 fallback Embed calls, got %d", inner.calls.Load())
	}
	if res.TotalTokens != 10 {
		t.Errorf("expected 10 tokens, got %d", res.TotalTokens)
	}
}

func TestInstrumentedEmbedder_HealthCheckWithoutSupport(t *testing.T) {
	p := NewInstrumentedEmbedder(&plainMockEmbedder{}, Options{}, zap.NewNop())
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
