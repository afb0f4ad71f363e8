package session

import (
	"context"

	"github.com/kailas-cloud/docchat/internal/domain/conversation"
	"github.com/kailas-cloud/docchat/internal/domain/document"
	convuc "github.com/kailas-cloud/docchat/internal/usecase/conversation"
	"github.com/kailas-cloud/docchat/internal/usecase/ingest"
)

// Conversation is the per-session engine the manager drives.
type Conversation interface {
	ID() string
	State() convuc.State
	Documents() []string
	History() []conversation.Message
	Ingest(ctx context.Context, raws []document.Raw) (ingest.Stats, error)
	Ask(ctx context.Context, question string) (convuc.Answer, error)
	DiscardPending() (bool, error)
}

// Factory creates the engine for a new session ID.
type Factory func(id string) Conversation
