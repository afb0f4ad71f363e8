// Package conversation defines chat history values.
package conversation

import "fmt"

// Role identifies the author of a message.
type Role string

const (
	// RoleHuman marks a user question.
	RoleHuman Role = "human"
	// RoleAssistant marks a generated answer.
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Human creates a human message.
func Human(content string) Message { return Message{Role: RoleHuman, Content: content} }

// Assistant creates an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// History is an append-only, strictly alternating message sequence starting with a human turn.
// Values are never mutated in place; Append returns a new History.
type History struct {
	messages []Message
}

// Len returns the number of messages.
func (h History) Len() int { return len(h.messages) }

// Pending reports whether the last message is a human turn without an answer.
func (h History) Pending() bool { return len(h.messages)%2 == 1 }

// Messages returns a copy of the messages.
func (h History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Append returns a new History with m appended. The role must be the next one in alternation.
func (h History) Append(m Message) (History, error) {
	want := RoleHuman
	if h.Pending() {
		want = RoleAssistant
	}
	if m.Role != want {
		return h, fmt.Errorf("expected %s message, got %s", want, m.Role)
	}
	next := make([]Message, len(h.messages), len(h.messages)+1)
	copy(next, h.messages)
	return History{messages: append(next, m)}, nil
}

// DropPending returns the history without a trailing unanswered human turn.
func (h History) DropPending() History {
	if !h.Pending() {
		return h
	}
	return History{messages: h.messages[: len(h.messages)-1 : len(h.messages)-1]}
}
