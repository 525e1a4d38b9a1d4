package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatMock(t *testing.T, system, user string) string {
	t.Helper()
	resp, err := NewMockBackend().Chat(context.Background(), NewChatRequest([]Message{System(system), User(user)}))
	require.NoError(t, err)
	return resp.Content
}

func TestMockBackend_DiagramTypes(t *testing.T) {
	tests := []struct {
		diagramType string
		wantType    string
		wantKey     string
	}{
		{"flow", "flow", "nodes"},
		{"sequence", "sequence", "participants"},
		{"state", "state", "transitions"},
		{"cmic_report", "cmic_report", "platform_labels"},
		{"unknown", "flow", "edges"},
	}
	for _, tc := range tests {
		t.Run(tc.diagramType, func(t *testing.T) {
			user := `{"diagram_type":"` + tc.diagramType + `","text":"登录流程"}`
			content := chatMock(t, "你只输出严格 JSON", user)

			var obj map[string]any
			require.NoError(t, json.Unmarshal([]byte(content), &obj))
			assert.Equal(t, tc.wantType, obj["type"])
			assert.Contains(t, obj, tc.wantKey)
		})
	}
}

func TestMockBackend_NoteTruncated(t *testing.T) {
	long := make([]rune, 300)
	for i := range long {
		long[i] = '字'
	}
	payload, err := json.Marshal(map[string]string{"diagram_type": "state", "text": string(long)})
	require.NoError(t, err)

	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(chatMock(t, "JSON only", string(payload))), &obj))
	assert.Len(t, []rune(obj["note"].(string)), 120)
}

func TestMockBackend_NonJSONUserFallsBackToFlow(t *testing.T) {
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(chatMock(t, "JSON", "plain words")), &obj))
	assert.Equal(t, "flow", obj["type"])
	assert.Equal(t, "plain words", obj["note"])
}

func TestMockBackend_OtherShapes(t *testing.T) {
	assert.Equal(t, "pong", chatMock(t, "You are a helpful assistant.", "Reply with exactly: pong"))
	assert.Contains(t, chatMock(t, "Return one <mxfile> document", `{"text":"x"}`), "<diagram")
	assert.Contains(t, chatMock(t, "Markdown plan", `{"text":"x"}`), "## 9. 待确认")
}
