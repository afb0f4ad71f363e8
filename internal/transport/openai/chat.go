package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/conversation"
	"github.com/kailas-cloud/docchat/internal/metrics"
)

// ChatConfig holds the chat completion provider settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	User        string
	Provider    string
	Logger      *zap.Logger
}

// ChatModel implements domain.LanguageModel on top of the chat completions endpoint.
type ChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	user        string
	provider    string
	logger      *zap.Logger
}

// NewChatModel creates an OpenAI-compatible chat model.
func NewChatModel(cfg *ChatConfig) *ChatModel {
	return &ChatModel{
		client:      newClient(cfg.APIKey, cfg.BaseURL),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		user:        cfg.User,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
}

// Generate sends instructions as the system message, then prior turns, then the question.
func (m *ChatModel) Generate(ctx context.Context, prompt domain.Prompt) (domain.GenerationResult, error) {
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    buildMessages(prompt),
		Temperature: m.temperature,
		User:        m.user,
	}
	if m.maxTokens > 0 {
		req.MaxTokens = m.maxTokens
	}

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		err = parseAPIError("chat", err, domain.ErrLanguageModel)
		metrics.LLMRequestsTotal.WithLabelValues(m.provider, m.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(m.provider, m.model, errorType(err)).Inc()
		return domain.GenerationResult{}, err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.LLMRequestsTotal.WithLabelValues(m.provider, m.model, "error").Inc()
		metrics.LLMErrorsTotal.WithLabelValues(m.provider, m.model, "empty_response").Inc()
		return domain.GenerationResult{}, fmt.Errorf("empty chat completion: %w", domain.ErrLanguageModel)
	}

	metrics.LLMRequestsTotal.WithLabelValues(m.provider, m.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(m.provider, m.model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.LLMTokensTotal.WithLabelValues(m.provider, m.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(m.provider, m.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	m.logger.Debug("Chat completion finished",
		zap.String("provider", m.provider),
		zap.String("model", m.model),
		zap.Duration("duration", duration),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return domain.GenerationResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (m *ChatModel) HealthCheck(ctx context.Context) error {
	if _, err := m.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func buildMessages(prompt domain.Prompt) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(prompt.History)+2)
	if prompt.Instructions != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt.Instructions,
		})
	}
	for _, h := range prompt.History {
		role := openai.ChatMessageRoleUser
		if h.Role == conversation.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: h.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt.Question,
	})
}
