package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaURL is the local Ollama daemon address.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaConfig configures an Ollama daemon.
type OllamaConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// OllamaBackend calls POST {base}/api/chat without streaming.
type OllamaBackend struct {
	cfg    OllamaConfig
	client *http.Client
}

// NewOllamaBackend returns an OllamaBackend. A nil client gets one with
// cfg.Timeout (120s when unset).
func NewOllamaBackend(cfg OllamaConfig, client *http.Client) (*OllamaBackend, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, configError(ModeOllama, "model")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OllamaBackend{cfg: cfg, client: client}, nil
}

// Name implements Backend.
func (b *OllamaBackend) Name() string { return ModeOllama }

// Chat implements Backend. Ollama has no universal max-token option, so only
// the temperature is forwarded.
func (b *OllamaBackend) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	url := strings.TrimRight(b.cfg.BaseURL, "/") + "/api/chat"
	data, err := postJSON(ctx, b.client, ModeOllama, url, map[string]any{
		"model":    b.cfg.Model,
		"messages": req.Messages,
		"stream":   false,
		"options": map[string]any{
			"temperature": req.Temperature,
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	msg, _ := data["message"].(map[string]any)
	content, _ := msg["content"].(string)
	return &ChatResponse{Content: content, Raw: data}, nil
}
