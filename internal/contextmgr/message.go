package contextmgr

import (
	"context"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation history.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// State is the persisted form of a conversation. Hosts store it as opaque JSON.
type State struct {
	Messages []Message `json:"messages"`
	Summary  string    `json:"summary"`
	Digested int       `json:"digested,omitempty"`
}

// Snippet is a piece of workspace text returned by a RetrievalProvider.
type Snippet struct {
	Source string
	Text   string
	Score  float64
}

// RetrievalProvider returns ranked snippets relevant to a query.
type RetrievalProvider interface {
	Retrieve(ctx context.Context, query string, limit int) ([]Snippet, error)
}

// Summarizer compacts a window of messages into a short digest.
type Summarizer interface {
	Compact(window []Message) string
}
