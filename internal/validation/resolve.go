package validation

import (
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// typeFields are read in order when resolving the variant of a spec object.
var typeFields = []string{"type", "diagram_type"}

// ResolveType picks the variant tag of obj: the "type" field, then
// "diagram_type", then intended. The first non-blank string wins, so a model
// that answers with a different type than requested is taken at its word.
func ResolveType(obj map[string]any, intended string) (schema.DiagramType, error) {
	raw := ""
	for _, field := range typeFields {
		if s, ok := obj[field].(string); ok && strings.TrimSpace(s) != "" {
			raw = s
			break
		}
	}
	if raw == "" {
		raw = strings.TrimSpace(intended)
	}
	if raw == "" {
		return "", schema.NewError(schema.ErrCodeMissingType, "spec has no type, diagram_type or intended type")
	}

	t, ok := schema.ParseDiagramType(raw)
	if !ok {
		return "", schema.NewErrorf(schema.ErrCodeUnsupportedType, "unsupported diagram type %q", raw).
			WithDetails(map[string]any{"type": raw})
	}
	return t, nil
}
