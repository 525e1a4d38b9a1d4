package expressions

import "context"

// Engine evaluates expressions against a JSON-like data map.
// Three implementations: GoJQ (spec reshaping), Expr (policy rules), CEL (artifact filters).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
