package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pdc/pkg/schema"
)

func TestBuildV1URL(t *testing.T) {
	assert.Equal(t, "https://gw.example/v1/chat/completions", buildV1URL("https://gw.example", "/chat/completions"))
	assert.Equal(t, "https://gw.example/v1/responses", buildV1URL("https://gw.example/v1/", "/responses"))
}

func TestNewOpenAICompatBackend_RequiresSettings(t *testing.T) {
	_, err := NewOpenAICompatBackend(OpenAICompatConfig{APIKey: "k", Model: "m"}, nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.ErrorCode(err))

	_, err = NewOpenAICompatBackend(OpenAICompatConfig{BaseURL: "http://x", Model: "m"}, nil)
	require.Error(t, err)

	_, err = NewOpenAICompatBackend(OpenAICompatConfig{BaseURL: "http://x", APIKey: "k"}, nil)
	require.Error(t, err)
}

func TestOpenAICompat_ChatCompletions(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"type\":\"flow\"}"}}]}`))
	}))
	defer srv.Close()

	b, err := NewOpenAICompatBackend(OpenAICompatConfig{BaseURL: srv.URL, APIKey: "secret", Model: "gpt-x"}, srv.Client())
	require.NoError(t, err)

	resp, err := b.Chat(context.Background(), NewChatRequest([]Message{System("s"), User("u")}))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"flow"}`, resp.Content)
	assert.Equal(t, "gpt-x", got["model"])
	assert.Equal(t, 0.2, got["temperature"])
	assert.Equal(t, float64(2048), got["max_tokens"])
	assert.Len(t, got["messages"], 2)
}

func TestOpenAICompat_Responses(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"output_text", `{"output_text":"pong"}`, "pong"},
		{"output parts", `{"output":[{"type":"reasoning"},{"content":[{"type":"output_text","text":""},{"type":"output_text","text":"hello"}]}]}`, "hello"},
		{"nothing", `{"output":[]}`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/responses", r.URL.Path)
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			b, err := NewOpenAICompatBackend(OpenAICompatConfig{
				BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m", APIStyle: " Responses ",
			}, srv.Client())
			require.NoError(t, err)

			resp, err := b.Chat(context.Background(), NewChatRequest([]Message{User("hi")}))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.Content)
			assert.Equal(t, float64(2048), got["max_output_tokens"])

			input := got["input"].([]any)
			part := input[0].(map[string]any)["content"].([]any)[0].(map[string]any)
			assert.Equal(t, "input_text", part["type"])
		})
	}
}

func TestOpenAICompat_ErrorBodyTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	b, err := NewOpenAICompatBackend(OpenAICompatConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"}, srv.Client())
	require.NoError(t, err)

	_, err = b.Chat(context.Background(), NewChatRequest(nil))
	require.Error(t, err)

	var pErr *schema.PipelineError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, schema.ErrCodeBackend, pErr.Code)
	assert.Equal(t, http.StatusBadGateway, pErr.Details["status"])
	assert.Contains(t, pErr.Message, "HTTP 502")
	assert.Contains(t, pErr.Message, strings.Repeat("x", MaxErrorBody)+"…")
	assert.NotContains(t, pErr.Message, strings.Repeat("x", MaxErrorBody+1))
}
