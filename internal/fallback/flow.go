// Package fallback builds deterministic diagrams for when model output
// cannot be used.
package fallback

import (
	"strconv"
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// ArrowDelimiters split free-form text into flow steps.
var ArrowDelimiters = []string{"->", "→", "⇒", "=>"}

const (
	startLabel = "start"
	endLabel   = "end"
)

// Flow derives a linear flowchart from text. It never fails: empty text gives
// start→end and a single step is wrapped as start→step→end.
func Flow(text string) *schema.FlowSpec {
	steps := Steps(text)
	switch len(steps) {
	case 0:
		steps = []string{startLabel, endLabel}
	case 1:
		steps = []string{startLabel, steps[0], endLabel}
	}

	spec := &schema.FlowSpec{
		Direction: "TD",
		Nodes:     make([]schema.FlowNode, 0, len(steps)),
		Edges:     make([]schema.FlowEdge, 0, len(steps)-1),
	}
	for i, label := range steps {
		spec.Nodes = append(spec.Nodes, schema.FlowNode{ID: nodeID(i), Label: label})
		if i > 0 {
			spec.Edges = append(spec.Edges, schema.FlowEdge{From: nodeID(i - 1), To: nodeID(i)})
		}
	}
	return spec
}

// Steps splits text on every arrow delimiter and returns the trimmed,
// non-empty segments in order.
func Steps(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	parts := []string{text}
	for _, d := range ArrowDelimiters {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, d)...)
		}
		parts = next
	}

	steps := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			steps = append(steps, p)
		}
	}
	return steps
}

func nodeID(i int) string {
	return "n" + strconv.Itoa(i+1)
}
