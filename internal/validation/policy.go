package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rendis/pdc/internal/expressions"
	"github.com/rendis/pdc/pkg/schema"
)

// CountRange is the advisory item count for one layered report list.
type CountRange struct {
	Min int
	Max int
}

// LayeredReportRanges are the target item counts per list. Lists outside the
// range still render; an empty list renders the built-in defaults.
var LayeredReportRanges = map[string]CountRange{
	"platform_labels":            {Min: 3, Max: 5},
	"application_agents":         {Min: 4, Max: 8},
	"agent_service_capabilities": {Min: 6, Max: 10},
	"orchestration_capabilities": {Min: 4, Max: 6},
	"foundation_capabilities":    {Min: 4, Max: 6},
}

var layeredReportFields = []string{
	"platform_labels",
	"application_agents",
	"agent_service_capabilities",
	"orchestration_capabilities",
	"foundation_capabilities",
}

// policyRule is an expr-lang predicate over a facts map. check must hold;
// offenders, when set, lists the values that break it.
type policyRule struct {
	path      string
	check     string
	offenders string
	message   string
}

var policyRules = map[schema.DiagramType][]policyRule{
	schema.DiagramFlow: {
		{
			path:      "/edges",
			check:     `all(endpoints, # in declared)`,
			offenders: `filter(endpoints, not (# in declared))`,
			message:   "edges reference undeclared nodes",
		},
	},
	schema.DiagramSequence: {
		{
			path:      "/messages",
			check:     `all(endpoints, # in declared)`,
			offenders: `filter(endpoints, not (# in declared))`,
			message:   "messages reference undeclared participants",
		},
		{
			path:    "/note",
			check:   `note == "" || len(declared) > 0`,
			message: "note needs at least one participant to anchor to",
		},
	},
	schema.DiagramState: {
		{
			path:      "/transitions",
			check:     `all(endpoints, # in declared)`,
			offenders: `filter(endpoints, not (# in declared))`,
			message:   "transitions reference undeclared states",
		},
	},
}

// Policy evaluates advisory rules. It never fails a spec.
type Policy struct {
	engine *expressions.ExprEngine
	logger *slog.Logger
}

// NewPolicy creates a Policy backed by engine.
func NewPolicy(engine *expressions.ExprEngine, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{engine: engine, logger: logger}
}

// Check returns the warnings raised by spec.
func (p *Policy) Check(ctx context.Context, spec *schema.Spec) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if spec.Type == schema.DiagramLayeredReport {
		p.checkLayeredReport(ctx, spec.LayeredReport, result)
		return result
	}

	facts := specFacts(spec)
	for _, rule := range policyRules[spec.Type] {
		ok, err := p.holds(ctx, rule.check, facts)
		if err != nil {
			p.logger.Warn("policy rule failed to evaluate", "rule", rule.check, "error", err)
			continue
		}
		if ok {
			continue
		}

		msg := rule.message
		if rule.offenders != "" {
			if out, err := p.engine.Evaluate(ctx, rule.offenders, facts); err == nil {
				msg = fmt.Sprintf("%s: %s", msg, strings.Join(distinct(out), ", "))
			}
		}
		result.AddWarning(rule.path, schema.ErrCodeValidation, msg)
	}
	return result
}

func (p *Policy) checkLayeredReport(ctx context.Context, r *schema.LayeredReportSpec, result *schema.ValidationResult) {
	counts := map[string]any{
		"platform_labels":            countItems(r.PlatformLabels),
		"application_agents":         countItems(r.ApplicationAgents),
		"agent_service_capabilities": countItems(r.AgentServiceCapabilities),
		"orchestration_capabilities": countItems(r.OrchestrationCapabilities),
		"foundation_capabilities":    countItems(r.FoundationCapabilities),
	}

	for _, field := range layeredReportFields {
		rng := LayeredReportRanges[field]
		facts := map[string]any{"n": counts[field], "lo": rng.Min, "hi": rng.Max}

		ok, err := p.holds(ctx, `n == 0 || (n >= lo && n <= hi)`, facts)
		if err != nil {
			p.logger.Warn("policy rule failed to evaluate", "field", field, "error", err)
			continue
		}
		if !ok {
			result.AddWarning("/"+field, schema.ErrCodeValidation,
				fmt.Sprintf("expected %d-%d items, got %d", rng.Min, rng.Max, counts[field]))
		}
	}
}

func (p *Policy) holds(ctx context.Context, expression string, facts map[string]any) (bool, error) {
	out, err := p.engine.Evaluate(ctx, expression, facts)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("rule %q returned %T, want bool", expression, out)
	}
	return b, nil
}

// specFacts flattens the identifiers of a graph-like spec into the shape the
// rules expect: declared ids, referenced endpoints and the note.
func specFacts(spec *schema.Spec) map[string]any {
	declared := []any{}
	endpoints := []any{}
	note := ""

	switch spec.Type {
	case schema.DiagramFlow:
		for _, n := range spec.Flow.Nodes {
			declared = append(declared, n.ID)
		}
		for _, e := range spec.Flow.Edges {
			endpoints = append(endpoints, e.From, e.To)
		}
		note = spec.Flow.Note
	case schema.DiagramSequence:
		for _, p := range spec.Sequence.Participants {
			declared = append(declared, p)
		}
		for _, m := range spec.Sequence.Messages {
			endpoints = append(endpoints, m.From, m.To)
		}
		note = spec.Sequence.Note
	case schema.DiagramState:
		for _, s := range spec.State.States {
			declared = append(declared, s)
		}
		for _, tr := range spec.State.Transitions {
			endpoints = append(endpoints, tr.From, tr.To)
		}
		note = spec.State.Note
	}

	return map[string]any{"declared": declared, "endpoints": endpoints, "note": note}
}

func countItems(items []string) int {
	n := 0
	for _, it := range items {
		if strings.TrimSpace(it) != "" {
			n++
		}
	}
	return n
}

// distinct returns the string items of an expr list result in first-seen order.
func distinct(v any) []string {
	list, _ := v.([]any)
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, item := range list {
		s := fmt.Sprint(item)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
