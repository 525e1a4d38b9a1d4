package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/pdc/internal/diagram"
	"github.com/rendis/pdc/internal/jobs"
	"github.com/rendis/pdc/internal/pipeline"
	"github.com/rendis/pdc/internal/store"
	"github.com/rendis/pdc/internal/streaming"
	"github.com/rendis/pdc/internal/validation"
	"github.com/rendis/pdc/pkg/schema"
)

const maxQueryLimit = 500

// handleDiagramGenerate generates a diagram, or queues it when async is set.
func (s *Server) handleDiagramGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	diagramType, err := req.RequireString("diagram_type")
	if err != nil {
		return mcp.NewToolResultError("diagram_type is required"), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}
	in := pipeline.DiagramRequest{Type: diagramType, Text: text, Scene: req.GetString("scene", "")}

	if req.GetBool("async", false) {
		return s.submit(ctx, func(ctx context.Context) (string, error) {
			return s.runner.SubmitDiagram(ctx, in)
		})
	}
	res, genErr := s.generator.GenerateDiagram(ctx, in)
	if genErr != nil {
		return toolError(genErr), nil
	}
	return marshalResult(res)
}

// handleDiagramRender validates and renders a spec without calling a backend.
func (s *Server) handleDiagramRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("spec")
	if err != nil {
		return mcp.NewToolResultError("spec is required"), nil
	}
	res, renderErr := s.generator.RenderSpec(ctx, raw, req.GetString("diagram_type", ""))
	if renderErr != nil {
		return toolError(renderErr), nil
	}
	return marshalResult(res)
}

// handleDiagramPreview renders a spec in the requested preview format.
func (s *Server) handleDiagramPreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("spec")
	if err != nil {
		return mcp.NewToolResultError("spec is required"), nil
	}
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "svg" && format != "png" {
		return mcp.NewToolResultError("format must be ascii, mermaid, svg, or png"), nil
	}

	res, renderErr := s.generator.RenderSpec(ctx, raw, req.GetString("diagram_type", ""))
	if renderErr != nil {
		return toolError(renderErr), nil
	}
	if format == "mermaid" {
		return mcp.NewToolResultText(res.Mermaid), nil
	}

	model, buildErr := diagram.FromSpec(res.Spec)
	if buildErr != nil {
		return toolError(buildErr), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCIIAuto(ctx, model, s.binDir)), nil
	default:
		imgFormat := diagram.ImageFormat(format)
		img, imgErr := diagram.RenderImage(ctx, model, imgFormat)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		encoded := base64.StdEncoding.EncodeToString(img)
		return mcp.NewToolResultImage(fmt.Sprintf("%s preview of %s diagram", format, res.Spec.Type), encoded, imgFormat.ContentType()), nil
	}
}

func (s *Server) handleDrawioGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}
	in := pipeline.DrawioRequest{Text: text}

	if req.GetBool("async", false) {
		return s.submit(ctx, func(ctx context.Context) (string, error) {
			return s.runner.SubmitDrawio(ctx, in)
		})
	}
	res, genErr := s.generator.GenerateDrawio(ctx, in)
	if genErr != nil {
		return toolError(genErr), nil
	}
	return marshalResult(res)
}

func (s *Server) handleDrawioValidate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("xml")
	if err != nil {
		return mcp.NewToolResultError("xml is required"), nil
	}
	if vErr := validation.ValidateDrawio(doc); vErr != nil {
		return toolError(vErr), nil
	}
	return marshalResult(map[string]any{"ok": true})
}

func (s *Server) handleIntegrationGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}
	in := pipeline.IntegrationRequest{Text: text, SwaggerText: req.GetString("swagger_text", "")}

	if req.GetBool("async", false) {
		return s.submit(ctx, func(ctx context.Context) (string, error) {
			return s.runner.SubmitIntegration(ctx, in)
		})
	}
	res, genErr := s.generator.GenerateIntegration(ctx, in)
	if genErr != nil {
		return toolError(genErr), nil
	}
	return marshalResult(res)
}

func (s *Server) handleTaskStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("task_id is required"), nil
	}
	if s.runner == nil {
		return mcp.NewToolResultError("asynchronous tasks are not enabled"), nil
	}
	task, statusErr := s.runner.Status(taskID)
	if statusErr != nil {
		return toolError(statusErr), nil
	}
	return marshalResult(task)
}

// handleArtifactsQuery lists artifacts, optionally narrowed by a CEL filter.
func (s *Server) handleArtifactsQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("artifact store is not configured"), nil
	}

	filter := store.ArtifactFilter{
		Kind:        store.ArtifactKind(req.GetString("kind", "")),
		Status:      store.ArtifactStatus(req.GetString("status", "")),
		DiagramType: req.GetString("diagram_type", ""),
		Limit:       req.GetInt("limit", store.DefaultListLimit),
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q", filter.Kind)), nil
	}
	if filter.Limit <= 0 {
		filter.Limit = store.DefaultListLimit
	}
	if filter.Limit > maxQueryLimit {
		filter.Limit = maxQueryLimit
	}

	expression := req.GetString("filter", "")
	if expression != "" && s.filters == nil {
		return mcp.NewToolResultError("artifact filters are not enabled"), nil
	}
	artifacts, err := store.QueryArtifacts(ctx, s.store, s.filters, filter, expression)
	if err != nil {
		return toolError(err), nil
	}
	if artifacts == nil {
		artifacts = []*store.Artifact{}
	}
	return marshalResult(map[string]any{"artifacts": artifacts, "count": len(artifacts)})
}

// --- Helpers ---

// submit queues work on the runner and arranges a completion notice for the
// calling session.
func (s *Server) submit(ctx context.Context, queue func(context.Context) (string, error)) (*mcp.CallToolResult, error) {
	if s.runner == nil {
		return mcp.NewToolResultError("asynchronous tasks are not enabled"), nil
	}
	taskID, err := queue(ctx)
	if err != nil {
		return toolError(err), nil
	}
	s.captureSession(ctx, taskID)
	s.watchTask(taskID)
	return marshalResult(map[string]any{"task_id": taskID, "state": streaming.StatePending})
}

// captureSession maps the task to the caller's MCP session for notifications.
func (s *Server) captureSession(ctx context.Context, taskID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(taskID, session.SessionID())
	}
}

// watchTask waits for the task to finish and hands its outcome to the
// notifier. The status is read after subscribing so a task that finished
// in between is still reported.
func (s *Server) watchTask(taskID string) {
	hub := s.runner.Hub()
	if hub == nil {
		return
	}
	ch, cancel, err := hub.Subscribe(s.watchCtx, streaming.EventFilter{TaskID: taskID})
	if err != nil {
		s.logger.Warn("task watch subscribe failed", "task_id", taskID, "error", err)
		return
	}

	s.watchers.Add(1)
	go func() {
		defer s.watchers.Done()
		defer cancel()

		if task, err := s.runner.Status(taskID); err == nil && task.State.Terminal() {
			s.notifyTask(task)
			return
		}
		for {
			select {
			case <-s.watchCtx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if !ev.State.Terminal() {
					continue
				}
				if task, err := s.runner.Status(taskID); err == nil {
					s.notifyTask(task)
				}
				return
			}
		}
	}()
}

func (s *Server) notifyTask(task *jobs.Task) {
	level := "info"
	if task.State == streaming.StateFailure {
		level = "error"
	}
	data, err := toMap(task)
	if err != nil {
		s.logger.Warn("encode task notification", "task_id", task.ID, "error", err)
		return
	}
	payload := map[string]any{"level": level, "logger": "pdc", "data": data}
	if err := s.notifier.Notify(s.watchCtx, task.ID, payload); err != nil {
		s.logger.Warn("task notification failed", "task_id", task.ID, "error", err)
	}
}

// toolError reports err as a tool-level error. Pipeline errors keep their
// code and details in the text.
func toolError(err error) *mcp.CallToolResult {
	var pe *schema.PipelineError
	if errors.As(err, &pe) {
		data, mErr := json.Marshal(map[string]any{"error": pe})
		if mErr == nil {
			return mcp.NewToolResultError(string(data))
		}
	}
	return mcp.NewToolResultError(err.Error())
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
