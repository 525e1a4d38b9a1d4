// Package mcp exposes the pdc pipeline as MCP tools over stdio.
package mcp

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/pdc/internal/jobs"
	"github.com/rendis/pdc/internal/pipeline"
	"github.com/rendis/pdc/internal/store"
)

// ServerDeps holds the dependencies for creating a Server. Runner, Store
// and Filters are optional; the tools that need them report an error when
// they are missing.
type ServerDeps struct {
	Generator *pipeline.Generator
	Runner    *jobs.Runner
	Store     store.Store
	Filters   store.Matcher
	BinDir    string
	Version   string
	Notifier  TaskNotifier
	Logger    *slog.Logger
}

// Server wraps an MCP server with pdc tool handlers.
type Server struct {
	generator *pipeline.Generator
	runner    *jobs.Runner
	store     store.Store
	filters   store.Matcher
	binDir    string
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  TaskNotifier
	mcpServer *server.MCPServer

	watchCtx  context.Context
	stopWatch context.CancelFunc
	watchers  sync.WaitGroup
}

// NewServer creates a Server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		generator: deps.Generator,
		runner:    deps.Runner,
		store:     deps.Store,
		filters:   deps.Filters,
		binDir:    deps.BinDir,
		logger:    logger,
		sessions:  NewSessionRegistry(),
	}
	s.watchCtx, s.stopWatch = context.WithCancel(context.Background())

	mcpSrv := server.NewMCPServer(
		"pdc",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
		server.WithInstructions("pdc turns free-form product descriptions into diagrams and documents. "+
			"Use diagram.generate for Mermaid diagrams (flow, sequence, state, cmic_report), diagram.render to "+
			"validate and render a spec you already have, diagram.preview for ASCII or image previews, "+
			"drawio.generate and drawio.validate for draw.io documents, integration.generate for integration "+
			"plans, task.status for asynchronous runs and artifacts.query to search stored results."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv

	s.notifier = deps.Notifier
	if s.notifier == nil {
		s.notifier = NewMCPNotifier(mcpSrv, s.sessions)
	}
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// Close stops pending task watchers and waits for them.
func (s *Server) Close() {
	s.stopWatch()
	s.watchers.Wait()
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: diagramGenerateTool(), Handler: s.handleDiagramGenerate},
		{Tool: diagramRenderTool(), Handler: s.handleDiagramRender},
		{Tool: diagramPreviewTool(), Handler: s.handleDiagramPreview},
		{Tool: drawioGenerateTool(), Handler: s.handleDrawioGenerate},
		{Tool: drawioValidateTool(), Handler: s.handleDrawioValidate},
		{Tool: integrationGenerateTool(), Handler: s.handleIntegrationGenerate},
		{Tool: taskStatusTool(), Handler: s.handleTaskStatus},
		{Tool: artifactsQueryTool(), Handler: s.handleArtifactsQuery},
	}
}

// --- Tool definitions ---

func diagramGenerateTool() mcp.Tool {
	return mcp.NewTool("diagram.generate",
		mcp.WithDescription("Generate a validated diagram spec and Mermaid markup from a description"),
		mcp.WithString("diagram_type", mcp.Required(),
			mcp.Enum("flow", "sequence", "state", "cmic_report"),
			mcp.Description("Kind of diagram to produce"),
		),
		mcp.WithString("text", mcp.Required(), mcp.Description("Free-form description of the system or process")),
		mcp.WithString("scene", mcp.Description("Optional scenario hint")),
		mcp.WithBoolean("async", mcp.Description("Queue the work and return a task_id instead of waiting")),
	)
}

func diagramRenderTool() mcp.Tool {
	return mcp.NewTool("diagram.render",
		mcp.WithDescription("Validate an existing diagram spec (or model output containing one) and render it as Mermaid"),
		mcp.WithString("spec", mcp.Required(), mcp.Description("Spec JSON, optionally wrapped in prose or a code fence")),
		mcp.WithString("diagram_type", mcp.Description("Intended type, used when the spec omits its own")),
	)
}

func diagramPreviewTool() mcp.Tool {
	return mcp.NewTool("diagram.preview",
		mcp.WithDescription("Preview a flow or state spec as ASCII art, Mermaid, or an SVG/PNG image"),
		mcp.WithString("spec", mcp.Required(), mcp.Description("Spec JSON, optionally wrapped in prose or a code fence")),
		mcp.WithString("diagram_type", mcp.Description("Intended type, used when the spec omits its own")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "svg", "png"),
			mcp.Description("Output format"),
		),
	)
}

func drawioGenerateTool() mcp.Tool {
	return mcp.NewTool("drawio.generate",
		mcp.WithDescription("Generate a structurally valid draw.io document from a description"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Free-form description of the diagram")),
		mcp.WithBoolean("async", mcp.Description("Queue the work and return a task_id instead of waiting")),
	)
}

func drawioValidateTool() mcp.Tool {
	return mcp.NewTool("drawio.validate",
		mcp.WithDescription("Check that a draw.io document is well-formed with an <mxfile> root and a <diagram> child"),
		mcp.WithString("xml", mcp.Required(), mcp.Description("The draw.io document")),
	)
}

func integrationGenerateTool() mcp.Tool {
	return mcp.NewTool("integration.generate",
		mcp.WithDescription("Generate a Markdown integration plan, with its outline and open items"),
		mcp.WithString("text", mcp.Required(), mcp.Description("Integration requirements")),
		mcp.WithString("swagger_text", mcp.Description("Optional OpenAPI/Swagger document of the target system")),
		mcp.WithBoolean("async", mcp.Description("Queue the work and return a task_id instead of waiting")),
	)
}

func taskStatusTool() mcp.Tool {
	return mcp.NewTool("task.status",
		mcp.WithDescription("Get the state and result of an asynchronous task"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("ID returned by an async generate call")),
	)
}

func artifactsQueryTool() mcp.Tool {
	return mcp.NewTool("artifacts.query",
		mcp.WithDescription("List stored artifacts, newest first"),
		mcp.WithString("kind", mcp.Enum("diagram", "drawio", "integration"), mcp.Description("Artifact kind")),
		mcp.WithString("status", mcp.Enum("created", "done", "failed"), mcp.Description("Artifact status")),
		mcp.WithString("diagram_type", mcp.Description("Diagram type of diagram artifacts")),
		mcp.WithString("filter", mcp.Description(`CEL expression over id, kind, status, diagram_type, object_key, error and created_at, e.g. status == "failed"`)),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 50)")),
	)
}
