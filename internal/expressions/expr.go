package expressions

import (
	"context"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEngine evaluates expr-lang expressions. Advisory spec policy rules are
// written in it: array predicates (all, any, count), membership tests (in)
// and plain comparisons over a facts map.
type ExprEngine struct {
	programs *programs[*vm.Program]
}

func NewExprEngine() *ExprEngine {
	return &ExprEngine{programs: newPrograms[*vm.Program](DefaultProgramCacheSize)}
}

func (e *ExprEngine) Name() string { return "expr" }

// Evaluate runs expression with the keys of data as variables. Programs are
// compiled against the first data seen for an expression, so callers must
// pass the same value kinds each time. Unknown names evaluate to nil.
func (e *ExprEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, emptyExpression(e.Name())
	}
	if data == nil {
		data = map[string]any{}
	}

	prg, err := e.programs.get(expression, func(src string) (*vm.Program, error) {
		p, err := expr.Compile(src, expr.Env(data), expr.AllowUndefinedVariables())
		if err != nil {
			return nil, expressionError(e.Name(), "compile", src, err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := vm.Run(prg, data)
	if err != nil {
		return nil, expressionError(e.Name(), "evaluation", expression, err)
	}
	return out, nil
}

var _ Engine = (*ExprEngine)(nil)
