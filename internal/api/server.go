// Package api serves the pdc HTTP API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/rendis/pdc/internal/jobs"
	"github.com/rendis/pdc/internal/pipeline"
	"github.com/rendis/pdc/internal/store"
)

// BackendInfo describes the configured text-generation backend for the
// ping endpoint. It never carries secrets.
type BackendInfo struct {
	Mode    string `json:"mode"`
	Model   string `json:"model,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// Deps holds the dependencies of the API server. Runner and Store may be
// nil; their routes then answer 503.
type Deps struct {
	Generator   *pipeline.Generator
	Runner      *jobs.Runner
	Store       store.Store
	Filters     store.Matcher
	Backend     BackendInfo
	BinDir      string
	CORSOrigins []string
	Logger      *slog.Logger
}

// Server routes API requests to the pipeline, task runner and store.
type Server struct {
	deps Deps
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Synchronous pipeline.
	mux.HandleFunc("POST /api/diagram/generate", s.handleDiagramGenerate)
	mux.HandleFunc("POST /api/diagram/render", s.handleDiagramRender)
	mux.HandleFunc("GET /api/diagram/preview/{id}", s.handleDiagramPreview)
	mux.HandleFunc("POST /api/drawio/generate", s.handleDrawioGenerate)
	mux.HandleFunc("POST /api/drawio/validate", s.handleDrawioValidate)
	mux.HandleFunc("POST /api/integration/generate", s.handleIntegrationGenerate)
	mux.HandleFunc("POST /api/settlement/metrics", s.handleSettlementMetrics)

	// Tasks.
	mux.HandleFunc("POST /api/tasks/{kind}", s.handleTaskSubmit)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskStatus)
	mux.HandleFunc("GET /api/tasks/{id}/ws", s.handleTaskWS)
	mux.HandleFunc("GET /api/tasks/{id}/events", s.handleTaskSSE)

	// Artifacts.
	mux.HandleFunc("GET /api/artifacts", s.handleArtifactList)
	mux.HandleFunc("GET /api/artifacts/{id}", s.handleArtifactGet)

	// Health probes.
	mux.HandleFunc("GET /api/llm/ping", s.handleLLMPing)
	mux.HandleFunc("GET /api/db/ping", s.handleDBPing)

	var h http.Handler = mux
	h = s.logRequests(h)
	h = cors(s.deps.CORSOrigins, h)
	h = s.recoverPanics(h)
	h = requestID(h)
	return h
}

// HTTPServer is an h2c-capable http.Server with graceful shutdown.
type HTTPServer struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewHTTPServer wraps handler for cleartext HTTP/2 and HTTP/1.1 on addr.
func NewHTTPServer(addr string, handler http.Handler, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           h2c.NewHandler(handler, &http2.Server{}),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
