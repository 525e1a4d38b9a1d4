package diagram

import (
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// RenderState renders a state spec as stateDiagram-v2. State declarations are
// optional in the grammar and emitted for readability.
func RenderState(spec *schema.StateSpec) string {
	lines := []string{"stateDiagram-v2"}

	for _, s := range spec.States {
		lines = append(lines, "  state "+s)
	}
	for _, t := range spec.Transitions {
		if label := strings.TrimSpace(t.Label); label != "" {
			lines = append(lines, "  "+t.From+" --> "+t.To+": "+label)
		} else {
			lines = append(lines, "  "+t.From+" --> "+t.To)
		}
	}

	return strings.Join(lines, "\n")
}
