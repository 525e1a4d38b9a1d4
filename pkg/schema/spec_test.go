package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDiagramType(t *testing.T) {
	tests := []struct {
		raw  string
		want DiagramType
		ok   bool
	}{
		{"flow", DiagramFlow, true},
		{" Sequence ", DiagramSequence, true},
		{"STATE", DiagramState, true},
		{"layered_report", DiagramLayeredReport, true},
		{"cmic_report", DiagramLayeredReport, true},
		{"gantt", DiagramType("gantt"), false},
		{"", DiagramType(""), false},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := ParseDiagramType(tc.raw)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestDiagramType_WireTag(t *testing.T) {
	assert.Equal(t, "cmic_report", DiagramLayeredReport.WireTag())
	assert.Equal(t, "flow", DiagramFlow.WireTag())
}

func TestSpec_MarshalJSON(t *testing.T) {
	spec := NewFlowSpec(&FlowSpec{
		Direction: "LR",
		Nodes:     []FlowNode{{ID: "a", Label: "A"}},
		Edges:     []FlowEdge{{From: "a", To: "b"}},
	})

	data, err := json.Marshal(spec)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "flow", got["type"])
	assert.Equal(t, "LR", got["direction"])
	assert.Len(t, got["nodes"], 1)
	assert.NotContains(t, got, "note")
}

func TestSpec_MarshalJSON_Unsupported(t *testing.T) {
	_, err := json.Marshal(&Spec{Type: "gantt"})
	assert.Error(t, err)
}

func TestSpec_Variant(t *testing.T) {
	seq := &SequenceSpec{Participants: []string{"A"}}
	assert.Same(t, seq, NewSequenceSpec(seq).Variant())
	assert.Nil(t, (&Spec{Type: "gantt"}).Variant())
}

func TestLayeredReportSpec_ApplyDefaults(t *testing.T) {
	r := &LayeredReportSpec{
		Title:             " 运营 ",
		PlatformLabels:    []string{"", " P1 "},
		ApplicationAgents: []string{"  "},
	}
	r.ApplyDefaults()

	assert.Equal(t, "运营", r.Title)
	assert.Equal(t, []string{"P1"}, r.PlatformLabels)
	assert.Equal(t, DefaultApplicationAgents(), r.ApplicationAgents)
	assert.Equal(t, DefaultServiceItems(), r.AgentServiceCapabilities)

	r.ApplicationAgents[0] = "changed"
	assert.NotEqual(t, "changed", DefaultApplicationAgents()[0], "defaults are copied")
}

func TestNonBlank(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, NonBlank([]string{" a", "", "b "}, []string{"x"}))
	assert.Equal(t, []string{"x"}, NonBlank(nil, []string{"x"}))
}
