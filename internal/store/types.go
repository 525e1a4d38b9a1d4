package store

import (
	"encoding/json"
	"time"
)

// ArtifactKind names what produced an artifact.
type ArtifactKind string

const (
	KindDiagram     ArtifactKind = "diagram"
	KindDrawio      ArtifactKind = "drawio"
	KindIntegration ArtifactKind = "integration"
)

// Valid reports whether k is a known kind.
func (k ArtifactKind) Valid() bool {
	switch k {
	case KindDiagram, KindDrawio, KindIntegration:
		return true
	}
	return false
}

// ArtifactStatus is the lifecycle state of an artifact.
type ArtifactStatus string

const (
	StatusCreated ArtifactStatus = "created"
	StatusDone    ArtifactStatus = "done"
	StatusFailed  ArtifactStatus = "failed"
)

// Artifact is a persisted pipeline output.
type Artifact struct {
	ID          string          `json:"id"`
	Kind        ArtifactKind    `json:"kind"`
	Status      ArtifactStatus  `json:"status"`
	DiagramType string          `json:"diagram_type,omitempty"`
	Request     json.RawMessage `json:"request"`
	Spec        json.RawMessage `json:"spec,omitempty"`
	Mermaid     string          `json:"mermaid,omitempty"`
	XML         string          `json:"xml,omitempty"`
	Markdown    string          `json:"markdown,omitempty"`
	ObjectKey   string          `json:"object_key,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// FilterVars exposes the artifact fields filter expressions may reference.
func (a *Artifact) FilterVars() map[string]any {
	return map[string]any{
		"id":           a.ID,
		"kind":         string(a.Kind),
		"status":       string(a.Status),
		"diagram_type": a.DiagramType,
		"object_key":   a.ObjectKey,
		"error":        a.Error,
		"created_at":   a.CreatedAt,
	}
}

// ArtifactFilter narrows ListArtifacts. Results are newest first.
type ArtifactFilter struct {
	Kind        ArtifactKind
	Status      ArtifactStatus
	DiagramType string
	Since       *time.Time
	Limit       int
	Offset      int
}

// DefaultListLimit applies when ArtifactFilter.Limit is zero.
const DefaultListLimit = 50
