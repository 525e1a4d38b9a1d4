package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pdc/internal/expressions"
	"github.com/rendis/pdc/internal/jobs"
	"github.com/rendis/pdc/internal/llm"
	"github.com/rendis/pdc/internal/pipeline"
	"github.com/rendis/pdc/internal/store"
	"github.com/rendis/pdc/internal/streaming"
	"github.com/rendis/pdc/internal/validation"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingNotifier captures notifications instead of sending them.
type recordingNotifier struct {
	mu    sync.Mutex
	calls map[string]map[string]any
	seen  chan string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{calls: make(map[string]map[string]any), seen: make(chan string, 8)}
}

func (n *recordingNotifier) Notify(_ context.Context, taskID string, payload map[string]any) error {
	n.mu.Lock()
	n.calls[taskID] = payload
	n.mu.Unlock()
	n.seen <- taskID
	return nil
}

type fixture struct {
	server   *Server
	runner   *jobs.Runner
	store    *store.SQLStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open("file:" + filepath.Join(t.TempDir(), "pdc.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))

	specs, err := validation.NewSpecValidator(quietLogger())
	require.NoError(t, err)
	gen := pipeline.NewGenerator(llm.NewMockBackend(), specs, validation.DrawioValidator{}, quietLogger())

	pool := jobs.NewWorkerPool(2, quietLogger())
	runner, err := jobs.NewRunner(gen, pool, jobs.RunnerDeps{
		Store:  st,
		Hub:    streaming.NewMemoryHub(),
		Logger: quietLogger(),
	})
	require.NoError(t, err)

	cel, err := expressions.NewCELEngine()
	require.NoError(t, err)

	notifier := newRecordingNotifier()
	s := NewServer(ServerDeps{
		Generator: gen,
		Runner:    runner,
		Store:     st,
		Filters:   cel,
		Notifier:  notifier,
		Logger:    quietLogger(),
	})

	t.Cleanup(func() {
		s.Close()
		pool.Shutdown()
		_ = st.Close()
	})
	return &fixture{server: s, runner: runner, store: st, notifier: notifier}
}

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	text := extractText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target), text)
}

func TestToolRegistration(t *testing.T) {
	s := NewServer(ServerDeps{Logger: quietLogger()})
	defer s.Close()

	expected := []string{
		"diagram.generate",
		"diagram.render",
		"diagram.preview",
		"drawio.generate",
		"drawio.validate",
		"integration.generate",
		"task.status",
		"artifacts.query",
	}
	require.Len(t, s.MCPServer().ListTools(), len(expected))
	for _, name := range expected {
		assert.NotNil(t, s.MCPServer().GetTool(name), "tool %s should be registered", name)
	}
}

func TestDiagramGenerate_Sync(t *testing.T) {
	f := newFixture(t)
	result, err := f.server.handleDiagramGenerate(context.Background(), buildRequest("diagram.generate", map[string]any{
		"diagram_type": "state",
		"text":         "草稿 -> 审核 -> 通过",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	var out struct {
		Spec    map[string]any `json:"spec"`
		Mermaid string         `json:"mermaid"`
	}
	unmarshalResult(t, result, &out)
	assert.Equal(t, "state", out.Spec["type"])
	assert.Contains(t, out.Mermaid, "stateDiagram-v2")
}

func TestDiagramGenerate_Errors(t *testing.T) {
	f := newFixture(t)

	result, err := f.server.handleDiagramGenerate(context.Background(), buildRequest("diagram.generate", map[string]any{
		"text": "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = f.server.handleDiagramGenerate(context.Background(), buildRequest("diagram.generate", map[string]any{
		"diagram_type": "gantt",
		"text":         "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), `"code":"UNSUPPORTED_TYPE"`)
}

func TestDiagramGenerate_AsyncNotifies(t *testing.T) {
	f := newFixture(t)
	result, err := f.server.handleDiagramGenerate(context.Background(), buildRequest("diagram.generate", map[string]any{
		"diagram_type": "flow",
		"text":         "下单 -> 支付",
		"async":        true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))

	var queued struct {
		TaskID string `json:"task_id"`
		State  string `json:"state"`
	}
	unmarshalResult(t, result, &queued)
	require.NotEmpty(t, queued.TaskID)
	assert.Equal(t, "PENDING", queued.State)

	select {
	case id := <-f.notifier.seen:
		assert.Equal(t, queued.TaskID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("no completion notification")
	}

	f.notifier.mu.Lock()
	payload := f.notifier.calls[queued.TaskID]
	f.notifier.mu.Unlock()
	assert.Equal(t, "info", payload["level"])
	data := payload["data"].(map[string]any)
	assert.Equal(t, "SUCCESS", data["state"])

	status, err := f.server.handleTaskStatus(context.Background(), buildRequest("task.status", map[string]any{
		"task_id": queued.TaskID,
	}))
	require.NoError(t, err)
	var task jobs.Task
	unmarshalResult(t, status, &task)
	assert.Equal(t, streaming.StateSuccess, task.State)
	assert.NotEmpty(t, task.Result["artifact_id"])
}

func TestDiagramRenderAndPreview(t *testing.T) {
	f := newFixture(t)
	spec := `{"type":"flow","direction":"LR","nodes":[{"id":"a","label":"开始"},{"id":"b","label":"结束"}],"edges":[{"from":"a","to":"b"}]}`

	result, err := f.server.handleDiagramRender(context.Background(), buildRequest("diagram.render", map[string]any{"spec": spec}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))
	var rendered struct {
		Mermaid string `json:"mermaid"`
	}
	unmarshalResult(t, result, &rendered)
	assert.Contains(t, rendered.Mermaid, "flowchart LR")

	result, err = f.server.handleDiagramPreview(context.Background(), buildRequest("diagram.preview", map[string]any{
		"spec":   spec,
		"format": "mermaid",
	}))
	require.NoError(t, err)
	assert.Equal(t, rendered.Mermaid, extractText(t, result))

	result, err = f.server.handleDiagramPreview(context.Background(), buildRequest("diagram.preview", map[string]any{
		"spec":   spec,
		"format": "ascii",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, extractText(t, result), "开始")

	result, err = f.server.handleDiagramPreview(context.Background(), buildRequest("diagram.preview", map[string]any{
		"spec":   spec,
		"format": "gif",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDiagramPreview_SequenceUnsupported(t *testing.T) {
	f := newFixture(t)
	spec := `{"type":"sequence","participants":["A","B"],"messages":[{"from":"A","to":"B","label":"hi"}]}`
	result, err := f.server.handleDiagramPreview(context.Background(), buildRequest("diagram.preview", map[string]any{
		"spec":   spec,
		"format": "ascii",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "UNSUPPORTED_TYPE")
}

func TestDrawioTools(t *testing.T) {
	f := newFixture(t)
	result, err := f.server.handleDrawioGenerate(context.Background(), buildRequest("drawio.generate", map[string]any{"text": "两个方框"}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))
	var out pipeline.DrawioResult
	unmarshalResult(t, result, &out)
	assert.False(t, out.FallbackUsed)

	result, err = f.server.handleDrawioValidate(context.Background(), buildRequest("drawio.validate", map[string]any{"xml": out.XML}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = f.server.handleDrawioValidate(context.Background(), buildRequest("drawio.validate", map[string]any{"xml": "<mxfile/>"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), validation.RuleMissingDiagram)
}

func TestIntegrationGenerate(t *testing.T) {
	f := newFixture(t)
	result, err := f.server.handleIntegrationGenerate(context.Background(), buildRequest("integration.generate", map[string]any{
		"text":         "对接支付网关",
		"swagger_text": "openapi: 3.0.0",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractText(t, result))
	var out pipeline.IntegrationResult
	unmarshalResult(t, result, &out)
	assert.NotEmpty(t, out.Markdown)
	assert.NotEmpty(t, out.Outline)
}

func TestArtifactsQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, kind := range []store.ArtifactKind{store.KindDiagram, store.KindDrawio, store.KindDrawio} {
		require.NoError(t, f.store.CreateArtifact(ctx, &store.Artifact{
			ID:     []string{"a1", "a2", "a3"}[i],
			Kind:   kind,
			Status: store.StatusDone,
		}))
	}

	query := func(args map[string]any) map[string]any {
		t.Helper()
		result, err := f.server.handleArtifactsQuery(ctx, buildRequest("artifacts.query", args))
		require.NoError(t, err)
		require.False(t, result.IsError, extractText(t, result))
		var out map[string]any
		unmarshalResult(t, result, &out)
		return out
	}

	assert.EqualValues(t, 3, query(map[string]any{})["count"])
	assert.EqualValues(t, 2, query(map[string]any{"kind": "drawio"})["count"])
	assert.EqualValues(t, 1, query(map[string]any{"filter": `id == "a1"`})["count"])
	assert.EqualValues(t, 1, query(map[string]any{"limit": float64(1)})["count"])

	result, err := f.server.handleArtifactsQuery(ctx, buildRequest("artifacts.query", map[string]any{"filter": "id =="}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = f.server.handleArtifactsQuery(ctx, buildRequest("artifacts.query", map[string]any{"kind": "video"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMissingDependencies(t *testing.T) {
	s := NewServer(ServerDeps{Logger: quietLogger()})
	defer s.Close()

	result, err := s.handleArtifactsQuery(context.Background(), buildRequest("artifacts.query", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleTaskStatus(context.Background(), buildRequest("task.status", map[string]any{"task_id": "task-1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleDrawioGenerate(context.Background(), buildRequest("drawio.generate", map[string]any{
		"text":  "x",
		"async": true,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
