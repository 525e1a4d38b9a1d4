package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAI-compatible API styles.
const (
	StyleChatCompletions = "chat_completions"
	StyleResponses       = "responses"
)

// OpenAICompatConfig configures an OpenAI-compatible gateway.
type OpenAICompatConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	APIStyle string        `yaml:"api_style"`
	Timeout  time.Duration `yaml:"timeout"`
}

// OpenAICompatBackend speaks either the chat completions or the responses API.
type OpenAICompatBackend struct {
	cfg    OpenAICompatConfig
	style  string
	client *http.Client
}

// NewOpenAICompatBackend validates cfg and returns a backend. A nil client
// gets one with cfg.Timeout (60s when unset).
func NewOpenAICompatBackend(cfg OpenAICompatConfig, client *http.Client) (*OpenAICompatBackend, error) {
	switch {
	case strings.TrimSpace(cfg.BaseURL) == "":
		return nil, configError(ModeOpenAICompat, "base_url")
	case strings.TrimSpace(cfg.APIKey) == "":
		return nil, configError(ModeOpenAICompat, "api_key")
	case strings.TrimSpace(cfg.Model) == "":
		return nil, configError(ModeOpenAICompat, "model")
	}

	style := strings.ToLower(strings.TrimSpace(cfg.APIStyle))
	if style != StyleResponses {
		style = StyleChatCompletions
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OpenAICompatBackend{cfg: cfg, style: style, client: client}, nil
}

// Name implements Backend.
func (b *OpenAICompatBackend) Name() string { return ModeOpenAICompat }

// Chat implements Backend.
func (b *OpenAICompatBackend) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var (
		url     string
		payload any
	)
	if b.style == StyleResponses {
		url = buildV1URL(b.cfg.BaseURL, "/responses")
		payload = b.responsesPayload(req)
	} else {
		url = buildV1URL(b.cfg.BaseURL, "/chat/completions")
		payload = map[string]any{
			"model":       b.cfg.Model,
			"messages":    req.Messages,
			"temperature": req.Temperature,
			"max_tokens":  req.MaxTokens,
		}
	}

	data, err := postJSON(ctx, b.client, ModeOpenAICompat, url, payload, map[string]string{
		"Authorization": "Bearer " + b.cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}

	if b.style == StyleResponses {
		return &ChatResponse{Content: responsesText(data), Raw: data}, nil
	}
	return &ChatResponse{Content: chatCompletionText(data), Raw: data}, nil
}

func (b *OpenAICompatBackend) responsesPayload(req ChatRequest) map[string]any {
	input := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		input = append(input, map[string]any{
			"role": m.Role,
			"content": []map[string]string{
				{"type": "input_text", "text": m.Content},
			},
		})
	}
	return map[string]any{
		"model":             b.cfg.Model,
		"input":             input,
		"max_output_tokens": req.MaxTokens,
		"temperature":       req.Temperature,
	}
}

// buildV1URL accepts either https://host or https://host/v1 as base.
func buildV1URL(base, path string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasSuffix(base, "/v1") {
		return base + path
	}
	return base + "/v1" + path
}

func chatCompletionText(data map[string]any) string {
	choices, _ := data["choices"].([]any)
	if len(choices) == 0 {
		return ""
	}
	choice, _ := choices[0].(map[string]any)
	msg, _ := choice["message"].(map[string]any)
	content, _ := msg["content"].(string)
	return content
}

// responsesText prefers the output_text convenience field, then the first
// non-empty text part of the output items.
func responsesText(data map[string]any) string {
	if s, ok := data["output_text"].(string); ok && s != "" {
		return s
	}
	output, _ := data["output"].([]any)
	for _, item := range output {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		parts, _ := obj["content"].([]any)
		for _, p := range parts {
			part, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok && text != "" {
				return text
			}
		}
	}
	return ""
}

// postJSON sends payload and decodes a JSON object reply. Non-2xx statuses
// become BACKEND_ERROR with the truncated body.
func postJSON(ctx context.Context, client *http.Client, backend, url string, payload any, headers map[string]string) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, transportError(backend, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, transportError(backend, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(backend, "request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(backend, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(backend, resp.StatusCode, string(raw))
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, transportError(backend, "decode response", err)
	}
	return data, nil
}
