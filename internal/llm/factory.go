package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// Backend modes.
const (
	ModeMock         = "mock"
	ModeOpenAICompat = "openai_compat"
	ModeOllama       = "ollama"
	ModeGemini       = "gemini"
)

// Config selects and configures a backend.
type Config struct {
	Mode         string               `yaml:"mode"`
	OpenAICompat OpenAICompatConfig   `yaml:"openai_compat"`
	Ollama       OllamaConfig         `yaml:"ollama"`
	Gemini       GeminiConfig         `yaml:"gemini"`
	Retry        RetryPolicy          `yaml:"retry"`
	Breaker      CircuitBreakerConfig `yaml:"breaker"`
}

// DefaultConfig returns the mock backend with default resilience settings.
func DefaultConfig() Config {
	return Config{
		Mode:    ModeMock,
		Ollama:  OllamaConfig{BaseURL: DefaultOllamaURL, Model: "qwen2.5:7b"},
		Gemini:  GeminiConfig{Model: DefaultGeminiModel},
		Retry:   DefaultRetryPolicy(),
		Breaker: DefaultCircuitBreakerConfig(),
	}
}

// NewBackend builds the backend for cfg.Mode. Remote backends are wrapped in
// a Resilient; the mock is returned bare.
func NewBackend(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))

	var (
		b   Backend
		err error
	)
	switch mode {
	case "", ModeMock:
		return NewMockBackend(), nil
	case ModeOpenAICompat:
		b, err = NewOpenAICompatBackend(cfg.OpenAICompat, nil)
	case ModeOllama:
		b, err = NewOllamaBackend(cfg.Ollama, nil)
	case ModeGemini:
		b, err = NewGeminiBackend(ctx, cfg.Gemini)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported llm mode %q", cfg.Mode).
			WithDetails(map[string]any{"mode": cfg.Mode})
	}
	if err != nil {
		return nil, err
	}
	return NewResilient(b, cfg.Retry, NewCircuitBreaker(b.Name(), cfg.Breaker), logger), nil
}

// Model returns the configured model name for mode, for diagnostics.
func (c Config) Model() string {
	switch strings.ToLower(c.Mode) {
	case ModeOpenAICompat:
		return c.OpenAICompat.Model
	case ModeOllama:
		return c.Ollama.Model
	case ModeGemini:
		return c.Gemini.Model
	}
	return ""
}

// BaseURL returns the configured endpoint for mode, for diagnostics.
func (c Config) BaseURL() string {
	switch strings.ToLower(c.Mode) {
	case ModeOpenAICompat:
		return c.OpenAICompat.BaseURL
	case ModeOllama:
		return c.Ollama.BaseURL
	case ModeGemini:
		return c.Gemini.BaseURL
	}
	return ""
}
