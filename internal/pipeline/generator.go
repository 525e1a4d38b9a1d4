// Package pipeline runs the generation pipeline: prompt composer, backend,
// extractor, validator, fallback and renderer. Each call is independent and
// holds no state between invocations.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/rendis/pdc/internal/diagram"
	"github.com/rendis/pdc/internal/extract"
	"github.com/rendis/pdc/internal/fallback"
	"github.com/rendis/pdc/internal/llm"
	"github.com/rendis/pdc/internal/prompt"
	"github.com/rendis/pdc/internal/validation"
	"github.com/rendis/pdc/pkg/schema"
)

// Generator wires a backend to the extraction, validation and rendering stages.
type Generator struct {
	backend   llm.Backend
	specs     validation.Validator
	documents validation.DocumentValidator
	logger    *slog.Logger
}

// NewGenerator creates a Generator. backend may be nil for offline use
// (RenderSpec only).
func NewGenerator(backend llm.Backend, specs validation.Validator, documents validation.DocumentValidator, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if documents == nil {
		documents = validation.DrawioValidator{}
	}
	return &Generator{backend: backend, specs: specs, documents: documents, logger: logger}
}

// Backend returns the configured backend, or nil.
func (g *Generator) Backend() llm.Backend { return g.backend }

// GenerateDiagram asks the backend for a spec and renders it. Extraction,
// shape and unsupported-type failures are returned as is. A flow spec that
// fails schema validation is replaced once by the deterministic fallback.
func (g *Generator) GenerateDiagram(ctx context.Context, req DiagramRequest) (*DiagramResult, error) {
	if strings.TrimSpace(req.Type) == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "diagram_type is required")
	}
	t, ok := schema.ParseDiagramType(req.Type)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedType, "unsupported diagram type %q", req.Type).
			WithDetails(map[string]any{"type": req.Type})
	}

	content, err := g.chat(ctx, "diagram", prompt.DiagramMessages(t, req.Text, req.Scene))
	if err != nil {
		return nil, err
	}
	return g.fromRaw(ctx, content, string(t), req.Text, true)
}

// RenderSpec runs extraction, validation and rendering on text that already
// holds a spec. No backend is called and no fallback applies.
func (g *Generator) RenderSpec(ctx context.Context, raw, intended string) (*DiagramResult, error) {
	return g.fromRaw(ctx, raw, intended, "", false)
}

func (g *Generator) fromRaw(ctx context.Context, content, intended, sourceText string, allowFallback bool) (*DiagramResult, error) {
	raw, err := extract.ExtractJSON(content)
	if err != nil {
		g.logger.WarnContext(ctx, "spec extraction failed", "intended", intended, "output_len", len(content))
		return nil, err
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, schema.NewError(schema.ErrCodeExtraction, "extracted text is not valid JSON").
			WithCause(err).
			WithDetails(map[string]any{"reason": "invalid_json"})
	}

	spec, result, err := g.specs.Validate(ctx, value, intended)
	fallbackUsed := false
	if err != nil {
		if !allowFallback || !g.flowSchemaFailure(value, intended, err) {
			g.logger.WarnContext(ctx, "spec validation failed", "intended", intended, "code", schema.ErrorCode(err))
			return nil, err
		}
		g.logger.WarnContext(ctx, "flow spec failed schema validation, using fallback", "error", err)
		spec = schema.NewFlowSpec(fallback.Flow(sourceText))
		result = nil
		fallbackUsed = true
	}

	mermaid, err := diagram.Render(spec)
	if err != nil {
		return nil, err
	}

	out := &DiagramResult{Spec: spec, Mermaid: mermaid, FallbackUsed: fallbackUsed}
	if result != nil {
		out.Warnings = result.Warnings
	}
	g.logger.InfoContext(ctx, "diagram rendered",
		"type", spec.Type,
		"fallback", fallbackUsed,
		"warnings", len(out.Warnings),
		"mermaid_len", len(mermaid),
	)
	return out, nil
}

// flowSchemaFailure reports whether err is a schema failure of a spec that
// resolves to the flow type.
func (g *Generator) flowSchemaFailure(value any, intended string, err error) bool {
	if !schema.HasCode(err, schema.ErrCodeSchema) {
		return false
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return false
	}
	t, rErr := validation.ResolveType(obj, intended)
	return rErr == nil && t == schema.DiagramFlow
}

// GenerateDrawio asks the backend for a draw.io document. Output without an
// extractable document is replaced by the fixed fallback; an extracted
// document that fails the structural checks is surfaced.
func (g *Generator) GenerateDrawio(ctx context.Context, req DrawioRequest) (*DrawioResult, error) {
	content, err := g.chat(ctx, "drawio", prompt.DrawioMessages(req.Text))
	if err != nil {
		return nil, err
	}

	out := &DrawioResult{}
	doc, err := extract.ExtractXML(content)
	if err != nil {
		g.logger.WarnContext(ctx, "drawio extraction failed, using fallback", "error", err)
		doc = fallback.Drawio()
		out.FallbackUsed = true
	}

	if err := g.documents.ValidateDrawio(doc); err != nil {
		g.logger.WarnContext(ctx, "drawio document rejected", "error", err)
		return nil, err
	}
	out.XML = doc
	g.logger.InfoContext(ctx, "drawio generated", "fallback", out.FallbackUsed, "xml_len", len(doc))
	return out, nil
}

// GenerateIntegration asks the backend for a Markdown integration plan and
// summarises its outline and open items.
func (g *Generator) GenerateIntegration(ctx context.Context, req IntegrationRequest) (*IntegrationResult, error) {
	content, err := g.chat(ctx, "integration", prompt.IntegrationMessages(req.Text, req.SwaggerText))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, schema.NewError(schema.ErrCodeExtraction, "backend returned an empty integration plan").
			WithDetails(map[string]any{"reason": "empty_output"})
	}

	out := &IntegrationResult{
		Markdown:  content,
		Outline:   extract.Outline(content),
		OpenItems: extract.OpenItems(content),
	}
	g.logger.InfoContext(ctx, "integration plan generated", "sections", len(out.Outline), "open_items", len(out.OpenItems))
	return out, nil
}

// chat sends messages and returns the raw generated text. Errors that are not
// already classified become BACKEND_ERROR.
func (g *Generator) chat(ctx context.Context, stage string, messages []llm.Message) (string, error) {
	if g.backend == nil {
		return "", schema.NewError(schema.ErrCodeBackend, "no text-generation backend configured")
	}

	g.logger.DebugContext(ctx, "calling backend", "stage", stage, "backend", g.backend.Name())
	resp, err := g.backend.Chat(ctx, llm.NewChatRequest(messages))
	if err != nil {
		var pErr *schema.PipelineError
		if errors.As(err, &pErr) {
			return "", err
		}
		return "", schema.NewErrorf(schema.ErrCodeBackend, "%s backend call failed: %v", g.backend.Name(), err).WithCause(err)
	}
	return resp.Content, nil
}
