package validation

import (
	"context"

	"github.com/rendis/pdc/internal/expressions"
)

// aliasProgram rewrites the key spellings models use for link endpoints
// ("from_", "source", "target") and drops the request-side "diagram_type".
const aliasProgram = `
def endpoints:
  if type == "object" then
    with_entries(.key |= (if . == "from_" or . == "source" then "from" elif . == "target" then "to" else . end))
  else . end;
def links(f): if (f | type) == "array" then f |= map(endpoints) else . end;
del(.diagram_type) | links(.edges) | links(.messages) | links(.transitions)
`

// normalizer applies aliasProgram with a shared jq engine.
type normalizer struct {
	jq *expressions.GoJQEngine
}

func (n *normalizer) normalize(ctx context.Context, obj map[string]any) (map[string]any, error) {
	return n.jq.Transform(ctx, aliasProgram, obj)
}
