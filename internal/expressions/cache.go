package expressions

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rendis/pdc/pkg/schema"
)

// DefaultProgramCacheSize bounds each engine's compiled-program cache.
// Filter expressions arrive from clients, so the cache must not grow freely.
const DefaultProgramCacheSize = 256

// programs caches compiled programs by source text. Concurrent misses on the
// same expression may compile it twice; either result is kept.
type programs[T any] struct {
	cache *lru.Cache[string, T]
}

func newPrograms[T any](size int) *programs[T] {
	if size <= 0 {
		size = DefaultProgramCacheSize
	}
	c, err := lru.New[string, T](size)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}
	return &programs[T]{cache: c}
}

func (p *programs[T]) get(expression string, compile func(string) (T, error)) (T, error) {
	if prg, ok := p.cache.Get(expression); ok {
		return prg, nil
	}
	prg, err := compile(expression)
	if err != nil {
		var zero T
		return zero, err
	}
	p.cache.Add(expression, prg)
	return prg, nil
}

func (p *programs[T]) len() int { return p.cache.Len() }

// expressionError builds the VALIDATION_ERROR every engine reports for a
// failed parse, compile or evaluation.
func expressionError(engine, phase, expression string, err error) *schema.PipelineError {
	return schema.NewErrorf(schema.ErrCodeValidation, "%s %s failed for %q: %s", engine, phase, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"engine": engine, "expression": expression})
}

func emptyExpression(engine string) *schema.PipelineError {
	return schema.NewErrorf(schema.ErrCodeValidation, "empty %s expression", engine)
}
