package diagram

import (
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// RenderSequence renders a sequence spec. A note is anchored over the first
// and last participants, so a note without participants is RENDER_FAILED.
func RenderSequence(spec *schema.SequenceSpec) (string, error) {
	lines := []string{"sequenceDiagram"}

	for _, p := range spec.Participants {
		lines = append(lines, "  participant "+p)
	}
	for _, m := range spec.Messages {
		lines = append(lines, "  "+m.From+"->>"+m.To+": "+m.Label)
	}

	if spec.Note != "" {
		if len(spec.Participants) == 0 {
			return "", schema.NewError(schema.ErrCodeRender, "sequence note requires at least one participant").
				WithDetails(map[string]any{"type": string(schema.DiagramSequence)})
		}
		first, last := spec.Participants[0], spec.Participants[len(spec.Participants)-1]
		lines = append(lines, "  Note over "+first+","+last+": "+spec.Note)
	}

	return strings.Join(lines, "\n"), nil
}
