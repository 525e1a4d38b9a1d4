package diagram

import (
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// RenderFlow renders a flow spec as a Mermaid flowchart. Edge endpoints that
// were never declared as nodes are sanitized on first use.
func RenderFlow(spec *schema.FlowSpec) string {
	direction := spec.Direction
	if direction == "" {
		direction = "TD"
	}

	lines := []string{"flowchart " + direction}
	ids := NewSanitizer()

	// Declared nodes claim their ids before any edge endpoint does.
	for _, n := range spec.Nodes {
		ids.ID(n.ID)
	}
	for _, n := range spec.Nodes {
		lines = append(lines, "  "+ids.ID(n.ID)+`["`+flatten(n.Label)+`"]`)
	}

	for _, e := range spec.Edges {
		from, to := ids.ID(e.From), ids.ID(e.To)
		if label := flatten(strings.TrimSpace(e.Label)); label != "" {
			lines = append(lines, "  "+from+" -->|"+label+"| "+to)
		} else {
			lines = append(lines, "  "+from+" --> "+to)
		}
	}

	return strings.Join(lines, "\n")
}

// flatten replaces line breaks with spaces.
func flatten(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
