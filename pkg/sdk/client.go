package docchat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/db"
	dbRedis "github.com/kailas-cloud/docchat/internal/db/redis"
	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/conversation"
	"github.com/kailas-cloud/docchat/internal/domain/document"
	"github.com/kailas-cloud/docchat/internal/repository/embcache"
	"github.com/kailas-cloud/docchat/internal/usecase/chunking"
	convuc "github.com/kailas-cloud/docchat/internal/usecase/conversation"
	embeddinguc "github.com/kailas-cloud/docchat/internal/usecase/embedding"
	"github.com/kailas-cloud/docchat/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/docchat/internal/usecase/health"
	"github.com/kailas-cloud/docchat/internal/usecase/indexing"
	"github.com/kailas-cloud/docchat/internal/usecase/ingest"
	"github.com/kailas-cloud/docchat/internal/usecase/retrieval"
	sessionuc "github.com/kailas-cloud/docchat/internal/usecase/session"
)

const defaultReadinessTimeout = 10 * time.Second

// sessionUseCase is the internal session API, replaceable in tests.
type sessionUseCase interface {
	Create(ctx context.Context) (sessionuc.Info, error)
	Delete(ctx context.Context, id string) error
	Ingest(ctx context.Context, id string, raws []document.Raw) (ingest.Stats, error)
	Ask(ctx context.Context, id, question string) (convuc.Answer, error)
	History(ctx context.Context, id string) ([]conversation.Message, error)
	DiscardPending(ctx context.Context, id string) (bool, error)
}

// Client is the docchat SDK entry point. It is safe for concurrent use;
// calls on different sessions never block each other.
type Client struct {
	store     db.Store
	sessions  sessionUseCase
	healthSvc healthUseCase
	cancel    context.CancelFunc
	obs       *observer
}

// New creates a Client. The provided context is used for the cache readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("docchat: embedder required (use WithEmbedder)")
	}
	if cfg.model == nil {
		return nil, errors.New("docchat: language model required (use WithLanguageModel)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if len(cfg.cacheAddrs) > 0 {
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.cacheAddrs,
			Password: cfg.cachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("docchat: create cache store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("docchat: cache not ready: %w", err)
		}
		store = s
	}

	return wireClient(store, cfg, obs)
}

// cacheModel is the cache key namespace for an embedding model name.
func cacheModel(name string) string {
	if name == "" {
		return "sdk"
	}
	return "sdk:" + name
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	defaults := domain.DefaultPipelineConfig()
	size, overlap := cfg.chunkSize, cfg.chunkOverlap
	if size == 0 && overlap == 0 {
		size, overlap = defaults.ChunkSize, defaults.ChunkOverlap
	}
	chunker, err := chunking.New(size, overlap)
	if err != nil {
		return nil, fmt.Errorf("docchat: %w", err)
	}

	log := zap.NewNop()
	var emb domain.Embedder = adaptEmbedder(cfg.embedder)
	if store != nil {
		emb = embcache.New(emb, store, cacheModel(cfg.embeddingModel), cfg.cacheTTL, nil, log)
	}
	emb = embeddinguc.NewInstrumentedEmbedder(emb, embeddinguc.Options{
		Provider:    "sdk",
		BatchSize:   cfg.batchSize,
		Concurrency: cfg.concurrency,
		Timeout:     cfg.embeddingTimeout,
	}, log)

	model := &modelAdapter{inner: cfg.model}
	factory := sessionuc.NewFactory(convuc.Deps{
		Builder:   ingest.New(extract.New(), chunker, indexing.New(emb, cfg.dimensions, log)),
		Retriever: retrieval.New(emb),
		Model:     model,
	}, convuc.Options{TopK: cfg.topK, LLMTimeout: cfg.llmTimeout})

	sessions := sessionuc.New(factory, sessionuc.Options{
		TTL:             cfg.sessionTTL,
		JanitorInterval: time.Minute,
		MaxSessions:     cfg.maxSessions,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	go sessions.Run(ctx)

	var pinger healthuc.Pinger
	if store != nil {
		pinger = store
	}
	var embChecker, llmChecker healthuc.Checker
	if hc, ok := cfg.embedder.(domain.HealthChecker); ok {
		embChecker = hc
	}
	if hc, ok := cfg.model.(domain.HealthChecker); ok {
		llmChecker = hc
	}

	return &Client{
		store:     store,
		sessions:  sessions,
		healthSvc: healthuc.New(pinger, embChecker, llmChecker),
		cancel:    cancel,
		obs:       obs,
	}, nil
}

// Close stops the session janitor and releases the cache connection.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// CreateSession starts an empty conversation and returns its ID.
func (c *Client) CreateSession(ctx context.Context) (id string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("create_session", id, start, err) }()

	info, err := c.sessions.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return info.ID, nil
}

// DeleteSession drops a conversation and its index.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_session", sessionID, start, err) }()

	if err = c.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Ingest replaces the session's knowledge base with docs. On failure the previous
// documents stay searchable.
func (c *Client) Ingest(ctx context.Context, sessionID string, docs []Document) (stats IngestStats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", sessionID, start, err) }()

	raws := make([]document.Raw, len(docs))
	for i, d := range docs {
		raws[i] = document.Raw{Name: d.Name, Data: d.Data}
	}

	s, err := c.sessions.Ingest(ctx, sessionID, raws)
	if err != nil {
		return IngestStats{}, fmt.Errorf("ingest: %w", err)
	}
	return IngestStats{Documents: s.Documents, Pages: s.Pages, Chunks: s.Chunks}, nil
}

// Ask answers question using the session's documents and earlier conversation.
func (c *Client) Ask(ctx context.Context, sessionID, question string) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", sessionID, start, err) }()

	res, err := c.sessions.Ask(ctx, sessionID, question)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return Answer{
		Text:    res.Text,
		History: messagesFromDomain(res.History),
		Sources: sourcesFromDomain(res.Sources),
	}, nil
}

// History returns the conversation so far.
func (c *Client) History(ctx context.Context, sessionID string) (msgs []Message, err error) {
	start := time.Now()
	defer func() { c.obs.observe("history", sessionID, start, err) }()

	h, err := c.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return messagesFromDomain(h), nil
}

// DiscardPending removes a question left unanswered by a failed Ask.
func (c *Client) DiscardPending(ctx context.Context, sessionID string) (removed bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("discard_pending", sessionID, start, err) }()

	removed, err = c.sessions.DiscardPending(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("discard pending: %w", err)
	}
	return removed, nil
}

func messagesFromDomain(msgs []conversation.Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Role: Role(m.Role), Content: m.Content}
	}
	return out
}

func sourcesFromDomain(hits []chunk.Hit) []Source {
	out := make([]Source, len(hits))
	for i, h := range hits {
		out[i] = Source{Document: h.Chunk.DocumentID, Chunk: h.Chunk.Index, Score: h.Score, Text: h.Chunk.Text}
	}
	return out
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// batchEmbedderAdapter also forwards BatchEmbed when the public embedder has it.
type batchEmbedderAdapter struct {
	embedderAdapter
	batch BatchEmbedder
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r, err := a.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func adaptEmbedder(e Embedder) domain.Embedder {
	base := embedderAdapter{inner: e}
	if be, ok := e.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter: base, batch: be}
	}
	return &base
}

// modelAdapter wraps public LanguageModel to satisfy internal domain.LanguageModel.
type modelAdapter struct {
	inner LanguageModel
}

func (a *modelAdapter) Generate(ctx context.Context, p domain.Prompt) (domain.GenerationResult, error) {
	msgs := messagesFromDomain(p.History)
	g, err := a.inner.Generate(ctx, Prompt{Instructions: p.Instructions, History: msgs, Question: p.Question})
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}
	return domain.GenerationResult{Text: g.Text, TotalTokens: g.TotalTokens}, nil
}
