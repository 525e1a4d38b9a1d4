package validation

import (
	"context"

	"github.com/rendis/pdc/pkg/schema"
)

// Validator turns a parsed JSON value into a typed diagram spec.
// Structural checks are errors; cross-field checks only produce warnings.
type Validator interface {
	Validate(ctx context.Context, value any, intended string) (*schema.Spec, *schema.ValidationResult, error)
}

// DocumentValidator gatekeeps externally sourced draw.io XML.
type DocumentValidator interface {
	ValidateDrawio(doc string) error
}
