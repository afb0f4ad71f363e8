package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/config"
	"github.com/kailas-cloud/docchat/internal/db"
	dbRedis "github.com/kailas-cloud/docchat/internal/db/redis"
	"github.com/kailas-cloud/docchat/internal/domain"
	logpkg "github.com/kailas-cloud/docchat/internal/logger"
	"github.com/kailas-cloud/docchat/internal/metrics"
	"github.com/kailas-cloud/docchat/internal/repository/embcache"
	chiTransport "github.com/kailas-cloud/docchat/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/docchat/internal/transport/openai"
	"github.com/kailas-cloud/docchat/internal/usecase/chunking"
	convuc "github.com/kailas-cloud/docchat/internal/usecase/conversation"
	embeddinguc "github.com/kailas-cloud/docchat/internal/usecase/embedding"
	"github.com/kailas-cloud/docchat/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/docchat/internal/usecase/health"
	"github.com/kailas-cloud/docchat/internal/usecase/indexing"
	"github.com/kailas-cloud/docchat/internal/usecase/ingest"
	"github.com/kailas-cloud/docchat/internal/usecase/retrieval"
	sessionuc "github.com/kailas-cloud/docchat/internal/usecase/session"
	"github.com/kailas-cloud/docchat/internal/version"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic("failed to load .env: " + err.Error())
	}

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docchat API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("cache", cfg.Cache.Enabled()),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("llm_model", cfg.LLM.Model),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterLLMMetrics()
	metrics.RegisterPipelineMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional embedding cache
	var store db.Store
	if cfg.Cache.Enabled() {
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer redisStore.Close()

		if err := redisStore.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		store = redisStore
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Build embedder chain: OpenAI -> Cached -> Instrumented -> Instruction
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	shared := buildEmbedder(base, store, cfg, logger)
	docEmbedder := withInstruction(shared, cfg.Embedding.DocumentInstruction)
	queryEmbedder := withInstruction(shared, cfg.Embedding.QueryInstruction)

	chat := openaiTransport.NewChatModel(&openaiTransport.ChatConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Provider:    cfg.LLM.Provider,
		Logger:      logger,
	})

	// Pipeline
	chunker, err := chunking.New(cfg.Chunking.Size, cfg.Chunking.OverlapValue())
	if err != nil {
		logger.Fatal("Invalid chunking settings", zap.Error(err))
	}
	builder := ingest.New(
		extract.New(),
		chunker,
		indexing.New(docEmbedder, cfg.Embedding.Dimensions, logger),
	)

	sessions := sessionuc.New(
		sessionuc.NewFactory(convuc.Deps{
			Builder:   builder,
			Retriever: retrieval.New(queryEmbedder),
			Model:     chat,
		}, convuc.Options{
			TopK:       cfg.Retrieval.TopK,
			LLMTimeout: cfg.LLM.Timeout(),
		}),
		sessionuc.Options{
			TTL:             cfg.Session.TTL(),
			JanitorInterval: cfg.Session.JanitorInterval(),
			MaxSessions:     cfg.Session.MaxSessions,
		},
		logger,
	)
	go sessions.Run(ctx)

	// Pass nil interface (not typed nil pointer!) when the cache is disabled.
	var cachePinger healthuc.Pinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(cachePinger, base, chat)

	server := chiTransport.NewServer(sessions, healthSvc, cfg.HTTP.MaxUploadBytes, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder wraps the provider with the optional cache and the instrumented layer.
func buildEmbedder(base domain.Embedder, store db.Store, cfg config.Config, logger *zap.Logger) domain.Embedder {
	embedder := base
	if store != nil {
		embedder = embcache.New(base, store, cfg.Embedding.Model,
			time.Duration(cfg.Cache.TTLHours)*time.Hour, metrics.EmbeddingCacheTotal, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, embeddinguc.Options{
		Provider:    cfg.Embedding.Provider,
		Model:       cfg.Embedding.Model,
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
		Timeout:     cfg.Embedding.Timeout(),
	}, logger)
}

// withInstruction adds the instruction prefix outermost, so the cache key includes it.
func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}
