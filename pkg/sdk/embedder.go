package docchat

import "context"

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
// Optional: if the provided Embedder also implements BatchEmbedder,
// ingestion uses it for significantly better throughput.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// LanguageModel writes the answer for a prompt.
type LanguageModel interface {
	Generate(ctx context.Context, prompt Prompt) (Generation, error)
}

// Prompt is what the language model receives for one question.
// Instructions already contain the retrieved passages.
type Prompt struct {
	Instructions string
	History      []Message
	Question     string
}

// Generation is the language model output.
type Generation struct {
	Text        string
	TotalTokens int
}
