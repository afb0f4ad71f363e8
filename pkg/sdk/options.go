package docchat

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	embedder Embedder
	model    LanguageModel

	chunkSize    int
	chunkOverlap int
	topK         int
	dimensions   int

	batchSize        int
	concurrency      int
	embeddingTimeout time.Duration
	llmTimeout       time.Duration

	embeddingModel string

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	sessionTTL  time.Duration
	maxSessions int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithLanguageModel sets the answer generator. Required.
func WithLanguageModel(m LanguageModel) Option {
	return optionFunc(func(c *clientConfig) {
		c.model = m
	})
}

// WithChunking sets the maximum chunk size and the overlap between consecutive chunks,
// both in characters. Defaults: 1000 and 20.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithTopK sets how many passages are retrieved per question. Default: 4.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithVectorDimensions pins the expected embedding size. By default any consistent size is accepted.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithEmbeddingBatching sets texts per provider call and how many calls run at once.
// Defaults: 256 and 1.
func WithEmbeddingBatching(batchSize, concurrency int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = batchSize
		c.concurrency = concurrency
	})
}

// WithTimeouts sets the deadline of each embedding call and of each answer generation.
// Zero means no deadline beyond the caller's context.
func WithTimeouts(embedding, llm time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingTimeout = embedding
		c.llmTimeout = llm
	})
}

// WithEmbeddingModel names the embedding model. The name is part of every cache key,
// so clients with different models can share one cache.
func WithEmbeddingModel(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = name
	})
}

// WithCache enables the Redis or Valkey embedding cache. ttl 0 keeps entries forever.
// Combine it with WithEmbeddingModel when several models share the cache.
func WithCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithSessionLimits sets the idle session lifetime and the session cap. Zero disables each.
func WithSessionLimits(ttl time.Duration, maxSessions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.sessionTTL = ttl
		c.maxSessions = maxSessions
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
