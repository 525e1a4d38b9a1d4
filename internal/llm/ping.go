package llm

import (
	"context"
	"strings"
	"time"
)

// PingResult reports a connectivity probe. It never carries secrets.
type PingResult struct {
	OK        bool   `json:"ok"`
	Backend   string `json:"backend"`
	LatencyMS int64  `json:"latency_ms"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Ping sends messages with temperature 0 and a 16-token budget and checks
// that the reply starts with "pong" (case-insensitive).
func Ping(ctx context.Context, backend Backend, messages []Message) PingResult {
	started := time.Now()
	resp, err := backend.Chat(ctx, ChatRequest{
		Messages:    messages,
		Temperature: 0,
		MaxTokens:   16,
	})
	result := PingResult{
		Backend:   backend.Name(),
		LatencyMS: time.Since(started).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}

	text := strings.TrimSpace(resp.Content)
	if r := []rune(text); len(r) > 200 {
		text = string(r[:200])
	}
	result.Text = text
	result.OK = strings.HasPrefix(strings.ToLower(text), "pong")
	return result
}
