package models

import (
	"context"

	"github.com/Cyclone1070/aicoder/internal/tool"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall represents a structured tool invocation from the model.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Message is a single provider-facing conversation entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`

	// For assistant messages requesting tools
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`

	// For tool messages answering a call
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
}

// Request is one completion request.
type Request struct {
	System      string
	Messages    []Message
	Tools       []tool.Declaration
	Temperature *float32 // nil means the configured default
	MaxTokens   int      // 0 means the configured default
}

// Usage reports token accounting when the backend provides it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the assistant reply to a Request.
type Response struct {
	Message Message
	Usage   Usage
	Model   string
}

// Provider sends a request to an LLM backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 {
	return &v
}

// UserText builds a request holding a single user message.
func UserText(system, prompt string) *Request {
	return &Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}

// Settings are the per-provider defaults applied when a Request leaves a field unset.
type Settings struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// TemperatureFor returns the request temperature or the default.
func (s Settings) TemperatureFor(req *Request) float32 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return s.Temperature
}

// MaxTokensFor returns the request token limit or the default.
func (s Settings) MaxTokensFor(req *Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return s.MaxTokens
}
