package logging

import (
	"context"
	"log/slog"
)

// correlation is the set of IDs a request or task carries through the
// pipeline. It is stored in the context as one immutable value.
type correlation struct {
	requestID  string
	taskID     string
	artifactID string
}

type correlationKey struct{}

func fromContext(ctx context.Context) correlation {
	c, _ := ctx.Value(correlationKey{}).(correlation)
	return c
}

func withCorrelation(ctx context.Context, update func(*correlation)) context.Context {
	c := fromContext(ctx)
	update(&c)
	return context.WithValue(ctx, correlationKey{}, c)
}

// WithRequestID tags ctx with the HTTP request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.requestID = id })
}

// WithTaskID tags ctx with an async task ID.
func WithTaskID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.taskID = id })
}

// WithArtifactID tags ctx with the artifact being produced.
func WithArtifactID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.artifactID = id })
}

func RequestID(ctx context.Context) string  { return fromContext(ctx).requestID }
func TaskID(ctx context.Context) string     { return fromContext(ctx).taskID }
func ArtifactID(ctx context.Context) string { return fromContext(ctx).artifactID }

func (c correlation) attrs() []slog.Attr {
	var attrs []slog.Attr
	for _, kv := range [...]struct{ key, val string }{
		{"request_id", c.requestID},
		{"task_id", c.taskID},
		{"artifact_id", c.artifactID},
	} {
		if kv.val != "" {
			attrs = append(attrs, slog.String(kv.key, kv.val))
		}
	}
	return attrs
}

// CorrelationHandler adds the IDs carried by a record's context to every
// record, so callers only need logger.InfoContext(ctx, ...).
type CorrelationHandler struct {
	inner slog.Handler
}

func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := fromContext(ctx).attrs(); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
