package pipeline

import (
	"github.com/rendis/pdc/internal/extract"
	"github.com/rendis/pdc/pkg/schema"
)

// DiagramRequest asks for a Mermaid diagram of the given type.
type DiagramRequest struct {
	Type  string `json:"diagram_type"`
	Text  string `json:"text"`
	Scene string `json:"scene,omitempty"`
}

// DiagramResult is a validated spec and its rendered Mermaid markup.
type DiagramResult struct {
	Spec         *schema.Spec             `json:"spec"`
	Mermaid      string                   `json:"mermaid"`
	FallbackUsed bool                     `json:"fallback_used"`
	Warnings     []schema.ValidationIssue `json:"warnings,omitempty"`
}

// DrawioRequest asks for a draw.io document.
type DrawioRequest struct {
	Text string `json:"text"`
}

// DrawioResult is a structurally validated draw.io document.
type DrawioResult struct {
	XML          string `json:"xml"`
	FallbackUsed bool   `json:"fallback_used"`
}

// IntegrationRequest asks for a Markdown integration plan.
type IntegrationRequest struct {
	Text        string `json:"text"`
	SwaggerText string `json:"swagger_text,omitempty"`
}

// IntegrationResult is the plan plus its heading outline and open items.
type IntegrationResult struct {
	Markdown  string            `json:"markdown"`
	Outline   []extract.Section `json:"outline,omitempty"`
	OpenItems []string          `json:"open_items,omitempty"`
}
