package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rendis/pdc/internal/store"
	"github.com/rendis/pdc/pkg/schema"
)

type artifactListResponse struct {
	Artifacts []*store.Artifact `json:"artifacts"`
	Count     int               `json:"count"`
}

// handleArtifactList lists artifacts newest first. Query params: kind,
// status, diagram_type, since (RFC 3339), limit, offset and filter, a
// boolean expression over id, kind, status, diagram_type, object_key, error
// and created_at.
func (s *Server) handleArtifactList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.writeError(w, r, unavailable("store"))
		return
	}
	filter, err := parseArtifactFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	expression := strings.TrimSpace(r.URL.Query().Get("filter"))
	if expression != "" && s.deps.Filters == nil {
		s.writeError(w, r, unavailable("artifact filters"))
		return
	}
	list, err := store.QueryArtifacts(r.Context(), s.deps.Store, s.deps.Filters, filter, expression)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*store.Artifact{}
	}
	writeJSON(w, http.StatusOK, artifactListResponse{Artifacts: list, Count: len(list)})
}

func (s *Server) handleArtifactGet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.writeError(w, r, unavailable("store"))
		return
	}
	a, err := s.deps.Store.GetArtifact(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func parseArtifactFilter(r *http.Request) (store.ArtifactFilter, error) {
	q := r.URL.Query()
	f := store.ArtifactFilter{
		Kind:        store.ArtifactKind(strings.TrimSpace(q.Get("kind"))),
		Status:      store.ArtifactStatus(strings.TrimSpace(q.Get("status"))),
		DiagramType: strings.TrimSpace(q.Get("diagram_type")),
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return f, schema.NewErrorf(schema.ErrCodeValidation, "unknown kind %q", f.Kind).
			WithDetails(map[string]any{"param": "kind"})
	}

	var err error
	if f.Limit, err = queryInt(r, "limit", store.DefaultListLimit); err != nil {
		return f, err
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		return f, err
	}

	if v := strings.TrimSpace(q.Get("since")); v != "" {
		since, pErr := time.Parse(time.RFC3339, v)
		if pErr != nil {
			return f, schema.NewErrorf(schema.ErrCodeValidation, "since must be RFC 3339, got %q", v).
				WithDetails(map[string]any{"param": "since"})
		}
		f.Since = &since
	}
	return f, nil
}
