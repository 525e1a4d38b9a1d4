package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withAll(ctx context.Context, requestID, taskID, artifactID string) context.Context {
	ctx = WithRequestID(ctx, requestID)
	ctx = WithTaskID(ctx, taskID)
	return WithArtifactID(ctx, artifactID)
}

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "", RequestID(ctx))
	assert.Equal(t, "", TaskID(ctx))
	assert.Equal(t, "", ArtifactID(ctx))

	ctx = withAll(ctx, "req-1", "task-1", "art-1")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "task-1", TaskID(ctx))
	assert.Equal(t, "art-1", ArtifactID(ctx))
}

func TestContextKeys_DerivedContextsAreIndependent(t *testing.T) {
	parent := WithRequestID(context.Background(), "req-1")
	child := WithTaskID(parent, "task-1")
	child = WithRequestID(child, "req-2")

	assert.Equal(t, "req-1", RequestID(parent))
	assert.Equal(t, "", TaskID(parent))
	assert.Equal(t, "req-2", RequestID(child))
	assert.Equal(t, "task-1", TaskID(child))
}

func TestCorrelationHandlerPartialContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewTextHandler(&buf, nil)))

	logger.InfoContext(WithTaskID(context.Background(), "task-only"), "partial context")

	output := buf.String()
	assert.Contains(t, output, "task_id=task-only")
	assert.NotContains(t, output, "request_id")
	assert.NotContains(t, output, "artifact_id")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	logger.InfoContext(withAll(context.Background(), "req-auto", "task-auto", "art-auto"), "auto inject")

	output := buf.String()
	assert.Contains(t, output, `"request_id":"req-auto"`)
	assert.Contains(t, output, `"task_id":"task-auto"`)
	assert.Contains(t, output, `"artifact_id":"art-auto"`)
	assert.Contains(t, output, "auto inject")
}

func TestCorrelationHandlerEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	logger.InfoContext(context.Background(), "bare log")

	output := buf.String()
	assert.NotContains(t, output, "request_id")
	assert.NotContains(t, output, "task_id")
	assert.Contains(t, output, "bare log")
}

func TestCorrelationHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	handler := NewCorrelationHandler(inner)
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "jobs")}))

	logger.InfoContext(WithTaskID(context.Background(), "task-attr"), "with attrs")

	output := buf.String()
	assert.Contains(t, output, `"task_id":"task-attr"`)
	assert.Contains(t, output, `"component":"jobs"`)
}

func TestCorrelationHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner).WithGroup("pipeline"))

	logger.InfoContext(WithRequestID(context.Background(), "req-grp"), "grouped", "key", "val")

	output := buf.String()
	assert.Contains(t, output, "req-grp")
	assert.Contains(t, output, "grouped")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")

	logger.Info("hidden")
	logger.WarnContext(WithTaskID(context.Background(), "task-9"), "shown")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, `"task_id":"task-9"`)
	assert.Contains(t, output, `"msg":"shown"`)

	buf.Reset()
	New(&buf, "info", "text").Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
