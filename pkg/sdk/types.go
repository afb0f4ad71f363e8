package docchat

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Document is an uploaded file. PDF is detected by content; anything else is read as
// UTF-8 text with pages separated by form feeds.
type Document struct {
	Name string
	Data []byte
}

// IngestStats summarizes a successful ingestion.
type IngestStats struct {
	Documents int
	Pages     int
	Chunks    int
}

// Source is a passage that was given to the language model.
type Source struct {
	Document string
	Chunk    int
	Score    float64
	Text     string
}

// Answer is the result of Ask.
type Answer struct {
	Text    string
	History []Message
	Sources []Source
}
