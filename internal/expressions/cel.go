package expressions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/rendis/pdc/pkg/schema"
)

// ArtifactVariables are the top-level names visible to artifact filter
// expressions, e.g. `kind == "diagram" && diagram_type == "flow"`.
var ArtifactVariables = []string{"id", "kind", "status", "diagram_type", "object_key", "error", "created_at"}

// CELEngine evaluates the filter expressions accepted by the artifact list
// endpoints.
type CELEngine struct {
	env      *cel.Env
	programs *programs[cel.Program]
}

// NewCELEngine declares the artifact fields as typed variables: created_at is
// a timestamp, everything else a string.
func NewCELEngine() (*CELEngine, error) {
	opts := make([]cel.EnvOption, 0, len(ArtifactVariables))
	for _, name := range ArtifactVariables {
		typ := cel.StringType
		if name == "created_at" {
			typ = cel.TimestampType
		}
		opts = append(opts, cel.Variable(name, typ))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &CELEngine{env: env, programs: newPrograms[cel.Program](DefaultProgramCacheSize)}, nil
}

func (e *CELEngine) Name() string { return "cel" }

// Evaluate runs expression against data. Missing variables take their zero
// value.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, emptyExpression(e.Name())
	}
	prg, err := e.programs.get(expression, e.compile)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.ContextEval(ctx, activation(data))
	if err != nil {
		return nil, expressionError(e.Name(), "evaluation", expression, err)
	}
	return out.Value(), nil
}

// Match evaluates a filter expression and requires a boolean result.
func (e *CELEngine) Match(ctx context.Context, expression string, data map[string]any) (bool, error) {
	out, err := e.Evaluate(ctx, expression, data)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"filter %q must evaluate to a bool, got %T", expression, out).
			WithDetails(map[string]any{"expression": expression})
	}
	return b, nil
}

// Check compiles expression without evaluating it, so a bad filter fails
// before any rows are read.
func (e *CELEngine) Check(expression string) error {
	if expression == "" {
		return emptyExpression(e.Name())
	}
	_, err := e.programs.get(expression, e.compile)
	return err
}

func (e *CELEngine) compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, expressionError(e.Name(), "compile", expression, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, expressionError(e.Name(), "program", expression, err)
	}
	return prg, nil
}

// activation binds every declared variable so CEL never sees an unbound name.
func activation(data map[string]any) map[string]any {
	out := make(map[string]any, len(ArtifactVariables))
	for _, key := range ArtifactVariables {
		switch v, ok := data[key]; {
		case ok && v != nil:
			out[key] = v
		case key == "created_at":
			out[key] = time.Time{}
		default:
			out[key] = ""
		}
	}
	return out
}
