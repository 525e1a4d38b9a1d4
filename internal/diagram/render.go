// Package diagram renders validated specs to Mermaid markup and builds
// preview models (ASCII, PNG, SVG) for graph-shaped specs.
package diagram

import (
	"github.com/rendis/pdc/pkg/schema"
)

// Render dispatches spec to the renderer for its type. Rendering never
// mutates spec and is deterministic.
func Render(spec *schema.Spec) (string, error) {
	if spec == nil {
		return "", schema.NewError(schema.ErrCodeRender, "nil spec")
	}

	switch spec.Type {
	case schema.DiagramFlow:
		if spec.Flow == nil {
			break
		}
		return RenderFlow(spec.Flow), nil
	case schema.DiagramSequence:
		if spec.Sequence == nil {
			break
		}
		return RenderSequence(spec.Sequence)
	case schema.DiagramState:
		if spec.State == nil {
			break
		}
		return RenderState(spec.State), nil
	case schema.DiagramLayeredReport:
		if spec.LayeredReport == nil {
			break
		}
		return RenderLayeredReport(spec.LayeredReport), nil
	default:
		return "", schema.NewErrorf(schema.ErrCodeUnsupportedType, "no renderer for diagram type %q", spec.Type)
	}
	return "", schema.NewErrorf(schema.ErrCodeRender, "%s spec has no %s variant", spec.Type, spec.Type)
}
