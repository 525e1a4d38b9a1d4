package expressions

import (
	"context"
	"fmt"

	"github.com/itchyny/gojq"
)

// GoJQEngine reshapes JSON with jq programs. The validator uses it to rewrite
// the field aliases models emit before schema validation.
type GoJQEngine struct {
	programs *programs[*gojq.Code]
}

func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{programs: newPrograms[*gojq.Code](DefaultProgramCacheSize)}
}

func (e *GoJQEngine) Name() string { return "jq" }

// Evaluate runs expression with data as its input. A single output is
// returned as is, several are collected into []any and none yields nil.
func (e *GoJQEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	results, err := e.run(ctx, expression, data)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// Transform runs a program that must map one object to exactly one object.
func (e *GoJQEngine) Transform(ctx context.Context, program string, obj map[string]any) (map[string]any, error) {
	results, err := e.run(ctx, program, obj)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, expressionError(e.Name(), "transform", program,
			fmt.Errorf("expected one output, got %d", len(results)))
	}
	out, ok := results[0].(map[string]any)
	if !ok {
		return nil, expressionError(e.Name(), "transform", program,
			fmt.Errorf("expected an object, got %T", results[0]))
	}
	return out, nil
}

func (e *GoJQEngine) run(ctx context.Context, expression string, data map[string]any) ([]any, error) {
	if expression == "" {
		return nil, emptyExpression(e.Name())
	}
	code, err := e.programs.get(expression, compileJQ)
	if err != nil {
		return nil, err
	}

	var input any = data
	if data == nil {
		input = map[string]any{}
	}
	iter := code.RunWithContext(ctx, input)

	var results []any
	for {
		val, ok := iter.Next()
		if !ok {
			return results, nil
		}
		if err, isErr := val.(error); isErr {
			return nil, expressionError(e.Name(), "evaluation", expression, err)
		}
		results = append(results, val)
	}
}

func compileJQ(expression string) (*gojq.Code, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, expressionError("jq", "parse", expression, err)
	}
	// $ENV is always empty.
	code, err := gojq.Compile(query, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, expressionError("jq", "compile", expression, err)
	}
	return code, nil
}

var _ Engine = (*GoJQEngine)(nil)
