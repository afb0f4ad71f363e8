package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if ms.sets != 1 || ms.lastTTL != time.Hour {
		t.Fatalf("expected one SET with 1h ttl, got %d sets ttl=%s", ms.sets, ms.lastTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.cacheKey("test text")] = vectorToCacheBytes([]float32{0.4, 0.5, 0.6})

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	if _, err := ce.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
	if ms.sets != 0 {
		t.Error("nothing should be cached on failure")
	}
}

func TestEmbed_StoreErrorsDegradeToMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getErr = errors.New("connection refused")
	ms.setErr = errors.New("connection refused")

	res, err := ce.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("store failures must not fail the request: %v", err)
	}
	if len(res.Embedding) != 1 {
		t.Fatalf("unexpected vector: %v", res.Embedding)
	}
}

func TestCacheKey_DependsOnModel(t *testing.T) {
	inner := &mockEmbedder{}
	a := New(inner, newMemStore(), "model-a", 0, nil, zap.NewNop())
	b := New(inner, newMemStore(), "model-b", 0, nil, zap.NewNop())
	if a.cacheKey("same") == b.cacheKey("same") {
		t.Error("keys for different models must differ")
	}
	if a.cacheKey("x") != a.cacheKey("x") {
		t.Error("keys must be deterministic")
	}
}

func TestBatchEmbed_AllMisses(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}, TotalTokens: 3}}
	ce, ms := newTestCachedEmbedder(t, inner)

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 6 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(ms.data) != 2 {
		t.Errorf("expected 2 cached entries, got %d", len(ms.data))
	}
}

func TestBatchEmbed_AllHits(t *testing.T) {
	inner := &mockEmbedder{}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.cacheKey("a")] = vectorToCacheBytes([]float32{1})
	ms.data[ce.cacheKey("b")] = vectorToCacheBytes([]float32{2})

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 0 {
		t.Errorf("expected no inner calls, got %d", inner.batchCalls)
	}
	if res.Embeddings[0][0] != 1 || res.Embeddings[1][0] != 2 {
		t.Errorf("unexpected embeddings: %v", res.Embeddings)
	}
}

func TestBatchEmbed_MixedHitsMisses(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{9}, TotalTokens: 1}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.cacheKey("b")] = vectorToCacheBytes([]float32{2})

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.lastBatch) != 2 || inner.lastBatch[0] != "a" || inner.lastBatch[1] != "c" {
		t.Errorf("expected only misses to be embedded, got %v", inner.lastBatch)
	}
	want := []float32{9, 2, 9}
	for i, w := range want {
		if res.Embeddings[i][0] != w {
			t.Errorf("embedding %d = %v, want %v", i, res.Embeddings[i][0], w)
		}
	}
	if res.TotalTokens != 2 {
		t.Errorf("expected tokens only for misses, got %d", res.TotalTokens)
	}
}

func TestBatchEmbed_CorruptedEntryIsMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{7}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.cacheKey("a")] = []byte{1, 2, 3}

	res, err := ce.BatchEmbed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings[0][0] != 7 {
		t.Errorf("expected fresh embedding, got %v", res.Embeddings[0])
	}
}

func TestEmbed_CorruptedEntryEvicted(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)
	key := ce.cacheKey("a")
	ms.data[key] = []byte{1, 2, 3}

	if _, err := ce.Embed(context.Background(), "a"); err == nil {
		t.Fatal("expected inner error after cache miss")
	}
	if len(ms.dels) != 1 || ms.dels[0] != key {
		t.Fatalf("expected eviction of %s, got %v", key, ms.dels)
	}
	if _, ok := ms.data[key]; ok {
		t.Error("corrupted entry still cached")
	}
}

func TestBatchEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{batchErr: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	if _, err := ce.BatchEmbed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
	if len(ms.data) != 0 {
		t.Error("nothing should be cached on failure")
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	ce, _ := newTestCachedEmbedder(t, &mockEmbedder{})
	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil {
		t.Fatalf("expected empty result, got %+v, %v", res, err)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("value %d: %v != %v", i, out[i], in[i])
		}
	}
	if _, err := bytesToVector([]byte{1}); err == nil {
		t.Error("expected error for truncated data")
	}
}
