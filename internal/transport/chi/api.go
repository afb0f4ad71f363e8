package chi

import (
	"time"

	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/conversation"
	sessionuc "github.com/kailas-cloud/docchat/internal/usecase/session"
)

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeSessionNotFound   ErrorCode = "session_not_found"
	ErrorCodeTooManySessions   ErrorCode = "too_many_sessions"
	ErrorCodeExtractionFailed  ErrorCode = "extraction_failed"
	ErrorCodeNoDocuments       ErrorCode = "no_documents"
	ErrorCodeEmptyIndex        ErrorCode = "empty_index"
	ErrorCodeSessionBusy       ErrorCode = "session_busy"
	ErrorCodeEmbeddingProvider ErrorCode = "embedding_provider_error"
	ErrorCodeLanguageModel     ErrorCode = "language_model_error"
	ErrorCodeUpstreamTimeout   ErrorCode = "upstream_timeout"
	ErrorCodeClientClosed      ErrorCode = "client_closed_request"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Document string    `json:"document,omitempty"`
}

// SessionResponse describes a session.
type SessionResponse struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Documents []string  `json:"documents"`
	Messages  int       `json:"messages"`
	LastUsed  time.Time `json:"last_used_at"`
}

// IngestResponse summarizes a successful upload.
type IngestResponse struct {
	Documents int `json:"documents"`
	Pages     int `json:"pages"`
	Chunks    int `json:"chunks"`
}

// AskRequest is the body of POST /sessions/{id}/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is a retrieved passage backing an answer.
type Source struct {
	Document string  `json:"document"`
	Chunk    int     `json:"chunk"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// AskResponse carries the answer and the updated conversation.
type AskResponse struct {
	Answer  string    `json:"answer"`
	History []Message `json:"history"`
	Sources []Source  `json:"sources"`
}

// HistoryResponse lists the conversation so far.
type HistoryResponse struct {
	Messages []Message `json:"messages"`
	Pending  bool      `json:"pending"`
}

// DiscardResponse reports whether a pending question was dropped.
type DiscardResponse struct {
	Removed bool `json:"removed"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

func sessionToAPI(info sessionuc.Info) SessionResponse {
	docs := info.Documents
	if docs == nil {
		docs = []string{}
	}
	return SessionResponse{
		ID:        info.ID,
		State:     string(info.State),
		Documents: docs,
		Messages:  info.Messages,
		LastUsed:  info.LastUsed.UTC(),
	}
}

func messagesToAPI(msgs []conversation.Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func sourcesToAPI(hits []chunk.Hit) []Source {
	out := make([]Source, len(hits))
	for i, h := range hits {
		out[i] = Source{
			Document: h.Chunk.DocumentID,
			Chunk:    h.Chunk.Index,
			Score:    h.Score,
			Text:     h.Chunk.Text,
		}
	}
	return out
}
