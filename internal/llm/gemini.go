package llm

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini API backend.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// GeminiBackend is a thin wrapper around the official genai client.
type GeminiBackend struct {
	cli   *genai.Client
	model string
}

// NewGeminiBackend creates a genai client for the Gemini API.
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, configError(ModeGemini, "api_key")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	cc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, transportError(ModeGemini, "create client", err)
	}
	return &GeminiBackend{cli: cli, model: model}, nil
}

// Name implements Backend.
func (g *GeminiBackend) Name() string { return ModeGemini }

// Chat implements Backend. System messages become the system instruction;
// assistant turns map to the "model" role.
func (g *GeminiBackend) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			continue
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if sys := systemText(req.Messages); sys != "" {
		cfg.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, transportError(ModeGemini, "generate content", err)
	}
	return &ChatResponse{
		Content: resp.Text(),
		Raw:     map[string]any{"model": g.model, "candidates": len(resp.Candidates)},
	}, nil
}
