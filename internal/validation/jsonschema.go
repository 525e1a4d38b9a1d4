package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/pdc/pkg/schema"
)

const schemaBaseURL = "https://pdc.dev/schemas/"

// variantSchemas holds one JSON Schema per diagram variant. Extra properties
// are allowed; models routinely add commentary fields.
var variantSchemas = map[schema.DiagramType]string{
	schema.DiagramFlow: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "direction": { "type": ["string", "null"] },
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "label"],
        "properties": {
          "id": { "type": "string" },
          "label": { "type": "string" }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": { "$ref": "#/$defs/link" }
    },
    "note": { "type": ["string", "null"] }
  },
  "$defs": {
    "link": {
      "type": "object",
      "required": ["from", "to"],
      "properties": {
        "from": { "type": "string" },
        "to": { "type": "string" },
        "label": { "type": ["string", "null"] }
      }
    }
  }
}`,
	schema.DiagramSequence: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["participants", "messages"],
  "properties": {
    "participants": {
      "type": "array",
      "items": { "type": "string" }
    },
    "messages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to", "label"],
        "properties": {
          "from": { "type": "string" },
          "to": { "type": "string" },
          "label": { "type": "string" }
        }
      }
    },
    "note": { "type": ["string", "null"] }
  }
}`,
	schema.DiagramState: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["states", "transitions"],
  "properties": {
    "states": {
      "type": "array",
      "items": { "type": "string" }
    },
    "transitions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "properties": {
          "from": { "type": "string" },
          "to": { "type": "string" },
          "label": { "type": ["string", "null"] }
        }
      }
    },
    "note": { "type": ["string", "null"] }
  }
}`,
	schema.DiagramLayeredReport: `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "title": { "type": ["string", "null"] },
    "platform_labels": { "$ref": "#/$defs/items" },
    "application_agents": { "$ref": "#/$defs/items" },
    "agent_service_capabilities": { "$ref": "#/$defs/items" },
    "orchestration_capabilities": { "$ref": "#/$defs/items" },
    "foundation_capabilities": { "$ref": "#/$defs/items" }
  },
  "$defs": {
    "items": {
      "type": ["array", "null"],
      "items": { "type": ["string", "null"] }
    }
  }
}`,
}

// JSONSchemaValidator checks spec objects against the per-variant schemas.
// Schemas are compiled once; it is safe for concurrent use.
type JSONSchemaValidator struct {
	schemas map[schema.DiagramType]*jsonschema.Schema
}

// NewJSONSchemaValidator compiles every variant schema.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	compiled := make(map[schema.DiagramType]*jsonschema.Schema, len(variantSchemas))
	for t, src := range variantSchemas {
		url := schemaBaseURL + string(t) + ".json"

		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s schema: %w", t, err)
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add %s schema resource: %w", t, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", t, err)
		}
		compiled[t] = s
	}

	return &JSONSchemaValidator{schemas: compiled}, nil
}

// ValidateVariant validates obj against the schema of t. Failures carry
// SCHEMA_INVALID with the violation list in details.
func (v *JSONSchemaValidator) ValidateVariant(t schema.DiagramType, obj map[string]any) error {
	s, ok := v.schemas[t]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeUnsupportedType, "unsupported diagram type %q", t)
	}

	doc, err := toJSONValue(obj)
	if err != nil {
		return schema.NewError(schema.ErrCodeSchema, "failed to serialize spec").WithCause(err)
	}

	if err := s.Validate(doc); err != nil {
		return toPipelineError(t, err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toPipelineError converts a jsonschema.ValidationError into a SCHEMA_INVALID
// PipelineError listing every leaf violation.
func toPipelineError(t schema.DiagramType, err error) *schema.PipelineError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeSchema, err.Error()).WithCause(err)
	}

	violations := collectViolations(verr)
	details := map[string]any{"type": string(t), "violations": violations}

	switch len(violations) {
	case 0:
		return schema.NewError(schema.ErrCodeSchema, verr.Error()).WithDetails(details)
	case 1:
		return schema.NewErrorf(schema.ErrCodeSchema, "%s spec: %s", t, violations[0]).WithDetails(details)
	}
	return schema.NewErrorf(schema.ErrCodeSchema, "%s spec failed validation with %d errors", t, len(violations)).
		WithDetails(details)
}

// collectViolations walks a ValidationError tree and collects leaf error messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
