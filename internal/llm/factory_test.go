package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pdc/pkg/schema"
)

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	b, err := NewBackend(ctx, DefaultConfig(), quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &MockBackend{}, b)

	cfg := DefaultConfig()
	cfg.Mode = "OLLAMA"
	b, err = NewBackend(ctx, cfg, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &Resilient{}, b)
	assert.Equal(t, ModeOllama, b.Name())

	cfg.Mode = ModeOpenAICompat
	_, err = NewBackend(ctx, cfg, quietLogger())
	assert.Equal(t, schema.ErrCodeValidation, schema.ErrorCode(err), "missing base_url")

	cfg.Mode = "anthropic"
	_, err = NewBackend(ctx, cfg, quietLogger())
	assert.Equal(t, schema.ErrCodeValidation, schema.ErrorCode(err))
}

func TestConfig_Diagnostics(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "", cfg.Model())

	cfg.Mode = ModeOllama
	assert.Equal(t, "qwen2.5:7b", cfg.Model())
	assert.Equal(t, DefaultOllamaURL, cfg.BaseURL())
}
