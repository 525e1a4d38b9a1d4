package validation

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pdc/pkg/schema"
)

func newSpecValidator(t *testing.T) *SpecValidator {
	t.Helper()
	sv, err := NewSpecValidator(nil)
	require.NoError(t, err)
	return sv
}

func TestSpecValidator_ImplementsValidator(t *testing.T) {
	var _ Validator = (*SpecValidator)(nil)
}

func TestSpecValidator_Flow(t *testing.T) {
	sv := newSpecValidator(t)

	raw := `{
		"type": "flow",
		"nodes": [{"id": "start", "label": "开始"}, {"id": "end", "label": "结束"}],
		"edges": [{"source": "start", "target": "end", "label": "go"}],
		"extra": true
	}`
	spec, result, err := sv.ValidateJSON(context.Background(), raw, "")
	require.NoError(t, err)
	require.True(t, result.Valid())
	assert.Empty(t, result.Warnings)

	want := &schema.FlowSpec{
		Direction: "TD",
		Nodes:     []schema.FlowNode{{ID: "start", Label: "开始"}, {ID: "end", Label: "结束"}},
		Edges:     []schema.FlowEdge{{From: "start", To: "end", Label: "go"}},
	}
	assert.Equal(t, schema.DiagramFlow, spec.Type)
	if diff := cmp.Diff(want, spec.Flow); diff != "" {
		t.Errorf("flow spec mismatch (-want +got):\n%s", diff)
	}
}

func TestSpecValidator_FromUnderscoreAlias(t *testing.T) {
	sv := newSpecValidator(t)

	raw := `{"participants":["A","B"],"messages":[{"from_":"A","to":"B","label":"hi"}]}`
	spec, _, err := sv.ValidateJSON(context.Background(), raw, "sequence")
	require.NoError(t, err)
	assert.Equal(t, "A", spec.Sequence.Messages[0].From)
}

func TestSpecValidator_UndeclaredEndpointsWarn(t *testing.T) {
	sv := newSpecValidator(t)

	raw := `{"type":"flow","nodes":[{"id":"a","label":"A"}],"edges":[{"from":"a","to":"ghost"},{"from":"ghost","to":"a"}]}`
	spec, result, err := sv.ValidateJSON(context.Background(), raw, "")
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "/edges", result.Warnings[0].Path)
	assert.Contains(t, result.Warnings[0].Message, "ghost")
}

func TestSpecValidator_SequenceNoteWithoutParticipantsWarns(t *testing.T) {
	sv := newSpecValidator(t)

	raw := `{"type":"sequence","participants":[],"messages":[],"note":"orphan"}`
	_, result, err := sv.ValidateJSON(context.Background(), raw, "")
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "/note", result.Warnings[0].Path)
}

func TestSpecValidator_LayeredReportRanges(t *testing.T) {
	sv := newSpecValidator(t)

	raw := `{"type":"cmic_report","title":"平台","platform_labels":["a","b"],"application_agents":[]}`
	spec, result, err := sv.ValidateJSON(context.Background(), raw, "")
	require.NoError(t, err)
	assert.Equal(t, schema.DiagramLayeredReport, spec.Type)
	assert.Equal(t, "平台", spec.LayeredReport.Title)

	require.Len(t, result.Warnings, 1, "empty lists use defaults and are not flagged")
	assert.Equal(t, "/platform_labels", result.Warnings[0].Path)
	assert.Contains(t, result.Warnings[0].Message, "expected 3-5 items, got 2")
}

func TestSpecValidator_LayeredReportDefaults(t *testing.T) {
	sv := newSpecValidator(t)

	spec, result, err := sv.Validate(context.Background(), map[string]any{"type": "cmic_report"}, "")
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	r := spec.LayeredReport
	require.NotNil(t, r)
	assert.Equal(t, schema.DefaultReportTitle, r.Title)
	assert.Equal(t, schema.DefaultPlatformLabels(), r.PlatformLabels)
	assert.Equal(t, schema.DefaultApplicationAgents(), r.ApplicationAgents)
	assert.Equal(t, schema.DefaultServiceItems(), r.AgentServiceCapabilities)
	assert.Equal(t, schema.DefaultOrchestrationItems(), r.OrchestrationCapabilities)
	assert.Equal(t, schema.DefaultFoundationItems(), r.FoundationCapabilities)
}

func TestSpecValidator_LayeredReportBlankItems(t *testing.T) {
	sv := newSpecValidator(t)

	raw := `{"type":"layered_report","title":"  ","application_agents":[" 客服 ",""," 导购"],"foundation_capabilities":["   "]}`
	spec, _, err := sv.ValidateJSON(context.Background(), raw, "")
	require.NoError(t, err)

	r := spec.LayeredReport
	assert.Equal(t, schema.DefaultReportTitle, r.Title)
	assert.Equal(t, []string{"客服", "导购"}, r.ApplicationAgents)
	assert.Equal(t, schema.DefaultFoundationItems(), r.FoundationCapabilities)
}

func TestSpecValidator_DuplicateFlowNodeID(t *testing.T) {
	sv := newSpecValidator(t)

	raw := `{"type":"flow","nodes":[{"id":"a","label":"A"},{"id":"b","label":"B"},{"id":"a","label":"C"}],"edges":[]}`
	spec, result, err := sv.ValidateJSON(context.Background(), raw, "")
	require.Error(t, err)
	assert.Nil(t, spec)
	assert.Equal(t, schema.ErrCodeSchema, schema.ErrorCode(err))

	var pErr *schema.PipelineError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "/nodes/2/id", pErr.Details["path"])

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "/nodes/2/id", result.Errors[0].Path)
}

func TestSpecValidator_Errors(t *testing.T) {
	sv := newSpecValidator(t)

	tests := []struct {
		name     string
		value    any
		intended string
		code     string
	}{
		{"array", []any{1.0}, "flow", schema.ErrCodeNotObject},
		{"string", "flow", "flow", schema.ErrCodeNotObject},
		{"null", nil, "flow", schema.ErrCodeNotObject},
		{"no type", map[string]any{"nodes": []any{}}, "", schema.ErrCodeMissingType},
		{"unknown type", map[string]any{"type": "mindmap"}, "flow", schema.ErrCodeUnsupportedType},
		{"echo", map[string]any{"diagram_type": "flow", "text": "a->b"}, "flow", schema.ErrCodeSchema},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec, result, err := sv.Validate(context.Background(), tc.value, tc.intended)
			require.Error(t, err)
			assert.Nil(t, spec)
			assert.Equal(t, tc.code, schema.ErrorCode(err))
			require.NotNil(t, result)
			assert.False(t, result.Valid())
		})
	}
}

func TestSpecValidator_ValidateJSON_Garbage(t *testing.T) {
	_, _, err := newSpecValidator(t).ValidateJSON(context.Background(), "{not json", "flow")
	assert.Equal(t, schema.ErrCodeExtraction, schema.ErrorCode(err))
}

func TestSpecValidator_InputNotMutated(t *testing.T) {
	sv := newSpecValidator(t)

	obj := map[string]any{
		"type":        "state",
		"states":      []any{"Draft"},
		"transitions": []any{map[string]any{"source": "Draft", "target": "Done"}},
	}
	_, _, err := sv.Validate(context.Background(), obj, "")
	require.NoError(t, err)

	tr := obj["transitions"].([]any)[0].(map[string]any)
	assert.Contains(t, tr, "source")
}
