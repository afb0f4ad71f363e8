package domain

import (
	"context"

	"github.com/kailas-cloud/docchat/internal/domain/conversation"
)

// Prompt is everything the language model sees for one answer.
// Instructions carries the system text with the retrieved passages already rendered.
type Prompt struct {
	Instructions string
	History      []conversation.Message
	Question     string
}

// GenerationResult carries the answer text and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LanguageModel produces an answer for a prompt.
type LanguageModel interface {
	Generate(ctx context.Context, prompt Prompt) (GenerationResult, error)
}
