package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rendis/pdc/internal/expressions"
	"github.com/rendis/pdc/pkg/schema"
)

// DefaultDirection is used when a flow spec has no direction.
const DefaultDirection = "TD"

// SpecValidator runs the staged spec pipeline:
// 1. Shape (JSON object, resolvable type)
// 2. Alias normalisation (jq)
// 3. Structural (per-variant JSON Schema)
// 4. Advisory policy (expr), warnings only
type SpecValidator struct {
	jsonSchema *JSONSchemaValidator
	aliases    *normalizer
	policy     *Policy
	logger     *slog.Logger
}

// NewSpecValidator builds a SpecValidator with its own expression engines.
func NewSpecValidator(logger *slog.Logger) (*SpecValidator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &SpecValidator{
		jsonSchema: jsv,
		aliases:    &normalizer{jq: expressions.NewGoJQEngine()},
		policy:     NewPolicy(expressions.NewExprEngine(), logger),
		logger:     logger,
	}, nil
}

// ValidateJSON parses raw and validates the result. raw is normally the
// output of the extractor.
func (sv *SpecValidator) ValidateJSON(ctx context.Context, raw, intended string) (*schema.Spec, *schema.ValidationResult, error) {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, nil, schema.NewError(schema.ErrCodeExtraction, "extracted text is not valid JSON").WithCause(err)
	}
	return sv.Validate(ctx, value, intended)
}

// Validate checks value and decodes it into the typed variant. The returned
// result carries schema errors or policy warnings; err is a PipelineError
// coded NOT_OBJECT, MISSING_TYPE, UNSUPPORTED_TYPE or SCHEMA_INVALID.
func (sv *SpecValidator) Validate(ctx context.Context, value any, intended string) (*schema.Spec, *schema.ValidationResult, error) {
	result := &schema.ValidationResult{}

	obj, ok := value.(map[string]any)
	if !ok {
		err := schema.NewErrorf(schema.ErrCodeNotObject, "spec must be a JSON object, got %s", jsonKind(value))
		result.AddError("/", schema.ErrCodeNotObject, err.Message)
		return nil, result, err
	}

	t, err := ResolveType(obj, intended)
	if err != nil {
		result.AddError("/type", schema.ErrorCode(err), err.Error())
		return nil, result, err
	}

	normalized, err := sv.aliases.normalize(ctx, obj)
	if err != nil {
		return nil, result, schema.NewError(schema.ErrCodeSchema, "failed to normalise spec fields").WithCause(err)
	}

	if err := sv.jsonSchema.ValidateVariant(t, normalized); err != nil {
		addViolations(result, err)
		return nil, result, err
	}

	spec, err := decodeVariant(t, normalized)
	if err != nil {
		path := "/"
		if pe, ok := err.(*schema.PipelineError); ok {
			if p, ok := pe.Details["path"].(string); ok {
				path = p
			}
		}
		result.AddError(path, schema.ErrCodeSchema, err.Error())
		return nil, result, err
	}

	result.Merge(sv.policy.Check(ctx, spec))
	if len(result.Warnings) > 0 {
		sv.logger.Debug("spec policy warnings", "type", t, "count", len(result.Warnings))
	}
	return spec, result, nil
}

// decodeVariant converts a schema-valid object into its typed variant and
// applies field defaults.
func decodeVariant(t schema.DiagramType, obj map[string]any) (*schema.Spec, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeSchema, "failed to re-encode spec").WithCause(err)
	}

	var spec *schema.Spec
	switch t {
	case schema.DiagramFlow:
		var f schema.FlowSpec
		if err = json.Unmarshal(b, &f); err == nil {
			if dupErr := checkUniqueNodeIDs(f.Nodes); dupErr != nil {
				return nil, dupErr
			}
		}
		if strings.TrimSpace(f.Direction) == "" {
			f.Direction = DefaultDirection
		}
		spec = schema.NewFlowSpec(&f)
	case schema.DiagramSequence:
		var s schema.SequenceSpec
		err = json.Unmarshal(b, &s)
		spec = schema.NewSequenceSpec(&s)
	case schema.DiagramState:
		var s schema.StateSpec
		err = json.Unmarshal(b, &s)
		spec = schema.NewStateSpec(&s)
	case schema.DiagramLayeredReport:
		var r schema.LayeredReportSpec
		err = json.Unmarshal(b, &r)
		r.ApplyDefaults()
		spec = schema.NewLayeredReportSpec(&r)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedType, "unsupported diagram type %q", t)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeSchema, "decode %s spec: %s", t, err.Error()).WithCause(err)
	}
	return spec, nil
}

// checkUniqueNodeIDs rejects a flow whose nodes repeat an id; Mermaid would
// keep only the last label.
func checkUniqueNodeIDs(nodes []schema.FlowNode) error {
	first := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if j, dup := first[n.ID]; dup {
			path := fmt.Sprintf("/nodes/%d/id", i)
			return schema.NewErrorf(schema.ErrCodeSchema, "%s: duplicate node id %q (first declared at /nodes/%d)", path, n.ID, j).
				WithDetails(map[string]any{"path": path, "id": n.ID})
		}
		first[n.ID] = i
	}
	return nil
}

// addViolations copies the schema violations of err into result.
func addViolations(result *schema.ValidationResult, err error) {
	var violations []string
	if pe, ok := err.(*schema.PipelineError); ok && pe.Details != nil {
		violations, _ = pe.Details["violations"].([]string)
	}
	if len(violations) == 0 {
		result.AddError("/", schema.ErrCodeSchema, err.Error())
		return
	}
	for _, v := range violations {
		path := "/"
		if i := strings.Index(v, ": "); i > 0 {
			path = v[:i]
		}
		result.AddError(path, schema.ErrCodeSchema, v)
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	}
	return "non-object"
}

var _ Validator = (*SpecValidator)(nil)
