// Package llm talks to text-generation backends. A Backend takes role-tagged
// messages and returns raw generated text; everything downstream of the raw
// text belongs to the pipeline.
package llm

import (
	"context"
	"strings"
)

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Generation defaults.
const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 2048
)

// Message is one role-tagged chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// ChatRequest is a single generation call.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// NewChatRequest wraps messages with the default generation parameters.
func NewChatRequest(messages []Message) ChatRequest {
	return ChatRequest{
		Messages:    messages,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// ChatResponse carries the generated text and the decoded backend payload.
type ChatResponse struct {
	Content string         `json:"content"`
	Raw     map[string]any `json:"raw,omitempty"`
}

// Backend is a text-generation service.
type Backend interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// systemText joins all system messages.
func systemText(messages []Message) string {
	var parts []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// firstContent returns the content of the first message with the given role.
func firstContent(messages []Message, role Role) string {
	for _, m := range messages {
		if m.Role == role {
			return m.Content
		}
	}
	return ""
}
