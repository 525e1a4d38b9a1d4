package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rendis/pdc/internal/diagram"
	"github.com/rendis/pdc/internal/jobs"
	"github.com/rendis/pdc/internal/llm"
	"github.com/rendis/pdc/internal/pipeline"
	"github.com/rendis/pdc/internal/prompt"
	"github.com/rendis/pdc/internal/settlement"
	"github.com/rendis/pdc/internal/store"
	"github.com/rendis/pdc/internal/validation"
	"github.com/rendis/pdc/pkg/schema"
)

type healthResponse struct {
	Status  string            `json:"status"`
	Workers *jobs.PoolMetrics `json:"workers,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.deps.Runner != nil {
		m := s.deps.Runner.Workers()
		resp.Workers = &m
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDiagramGenerate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.DiagramRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Generator.GenerateDiagram(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// renderRequest carries a spec to render without calling a backend. Spec is
// either a JSON object or a string of model output.
type renderRequest struct {
	Type string          `json:"diagram_type"`
	Spec json.RawMessage `json:"spec"`
}

func (s *Server) handleDiagramRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	raw, err := rawSpec(req.Spec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Generator.RenderSpec(r.Context(), raw, req.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleDiagramPreview renders a stored flow or state diagram as ASCII text
// or a graphviz image.
func (s *Server) handleDiagramPreview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.writeError(w, r, unavailable("store"))
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "ascii"
	}
	if format != "ascii" && format != string(diagram.ImageSVG) && format != string(diagram.ImagePNG) {
		s.writeError(w, r, schema.NewErrorf(schema.ErrCodeValidation, "format must be ascii, svg or png, got %q", format).
			WithDetails(map[string]any{"param": "format"}))
		return
	}

	a, err := s.deps.Store.GetArtifact(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if a.Kind != store.KindDiagram || len(a.Spec) == 0 {
		s.writeError(w, r, schema.NewErrorf(schema.ErrCodeUnsupportedType, "artifact %s has no diagram spec", a.ID).
			WithDetails(map[string]any{"id": a.ID, "kind": string(a.Kind)}))
		return
	}

	res, err := s.deps.Generator.RenderSpec(r.Context(), string(a.Spec), a.DiagramType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	model, err := diagram.FromSpec(res.Spec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if format == "ascii" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(diagram.RenderASCIIAuto(r.Context(), model, s.deps.BinDir)))
		return
	}

	img, err := diagram.RenderImage(r.Context(), model, diagram.ImageFormat(format))
	if err != nil {
		s.writeError(w, r, schema.NewErrorf(schema.ErrCodeRender, "render %s preview: %v", format, err).WithCause(err))
		return
	}
	w.Header().Set("Content-Type", diagram.ImageFormat(format).ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func (s *Server) handleDrawioGenerate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.DrawioRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Generator.GenerateDrawio(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type drawioValidateRequest struct {
	XML string `json:"xml"`
}

func (s *Server) handleDrawioValidate(w http.ResponseWriter, r *http.Request) {
	var req drawioValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validation.ValidateDrawio(req.XML); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleIntegrationGenerate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.IntegrationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Generator.GenerateIntegration(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSettlementMetrics(w http.ResponseWriter, r *http.Request) {
	var req settlement.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement.Compute(req))
}

// llmPingResponse adds the configured mode and endpoint to the probe result.
type llmPingResponse struct {
	llm.PingResult
	Mode    string               `json:"mode"`
	Model   string               `json:"model,omitempty"`
	BaseURL string               `json:"base_url,omitempty"`
	Circuit *llm.CircuitSnapshot `json:"circuit,omitempty"`
}

// circuitReporter is implemented by backends wrapped in llm.Resilient.
type circuitReporter interface {
	Circuit() llm.CircuitSnapshot
}

// handleLLMPing always answers 200; the body reports the outcome.
func (s *Server) handleLLMPing(w http.ResponseWriter, r *http.Request) {
	out := llmPingResponse{
		Mode:    s.deps.Backend.Mode,
		Model:   s.deps.Backend.Model,
		BaseURL: s.deps.Backend.BaseURL,
	}
	backend := s.deps.Generator.Backend()
	if backend == nil {
		out.Error = "no text-generation backend configured"
		writeJSON(w, http.StatusOK, out)
		return
	}
	out.PingResult = llm.Ping(r.Context(), backend, prompt.PingMessages())
	if cr, ok := backend.(circuitReporter); ok {
		snap := cr.Circuit()
		out.Circuit = &snap
	}
	writeJSON(w, http.StatusOK, out)
}

type dbPingResponse struct {
	OK        bool   `json:"ok"`
	Dialect   string `json:"dialect,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleDBPing(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeJSON(w, http.StatusOK, dbPingResponse{Error: "store is not configured"})
		return
	}
	started := time.Now()
	err := s.deps.Store.Ping(r.Context())
	out := dbPingResponse{
		OK:        err == nil,
		Dialect:   s.deps.Store.Dialect(),
		LatencyMS: time.Since(started).Milliseconds(),
	}
	if err != nil {
		out.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}
