package diagram

import (
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// terminalState is the start/end pseudo-state of state diagrams.
const terminalState = "[*]"

// FromSpec builds a preview model for graph-shaped specs (flow and state).
// Node ids go through the same Sanitizer as the Mermaid renderer.
func FromSpec(spec *schema.Spec) (*DiagramModel, error) {
	if spec == nil {
		return nil, schema.NewError(schema.ErrCodeRender, "nil spec")
	}

	switch {
	case spec.Type == schema.DiagramFlow && spec.Flow != nil:
		return fromFlow(spec.Flow), nil
	case spec.Type == schema.DiagramState && spec.State != nil:
		return fromState(spec.State), nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeUnsupportedType,
		"preview is available for flow and state diagrams, not %q", spec.Type).
		WithDetails(map[string]any{"type": string(spec.Type)})
}

// graphBuilder accumulates nodes and edges with sanitized ids.
type graphBuilder struct {
	ids   *Sanitizer
	model *DiagramModel
}

func newGraphBuilder(title, direction string) *graphBuilder {
	return &graphBuilder{
		ids:   NewSanitizer(),
		model: &DiagramModel{Title: title, Direction: direction},
	}
}

func (g *graphBuilder) declare(raw, label string, kind NodeKind) {
	if g.ids.Known(raw) {
		return
	}
	g.model.Nodes = append(g.model.Nodes, &Node{ID: g.ids.ID(raw), Label: label, Kind: kind})
}

func (g *graphBuilder) endpoint(raw string) string {
	switch {
	case raw == terminalState:
		g.declare(raw, "●", NodeKindTerminal)
	default:
		g.declare(raw, raw, NodeKindImplicit)
	}
	return g.ids.ID(raw)
}

func (g *graphBuilder) connect(from, to, label string) {
	g.model.Edges = append(g.model.Edges, Edge{
		From:  g.endpoint(from),
		To:    g.endpoint(to),
		Label: flatten(strings.TrimSpace(label)),
	})
}

func (g *graphBuilder) build() *DiagramModel {
	g.model.Levels = buildLevels(g.model)
	return g.model
}

func fromFlow(f *schema.FlowSpec) *DiagramModel {
	g := newGraphBuilder("Flow", f.Direction)
	for _, n := range f.Nodes {
		g.declare(n.ID, flatten(n.Label), NodeKindStep)
	}
	for _, e := range f.Edges {
		g.connect(e.From, e.To, e.Label)
	}
	return g.build()
}

func fromState(s *schema.StateSpec) *DiagramModel {
	g := newGraphBuilder("State", "TD")
	for _, st := range s.States {
		kind := NodeKindState
		label := st
		if st == terminalState {
			kind, label = NodeKindTerminal, "●"
		}
		g.declare(st, label, kind)
	}
	for _, t := range s.Transitions {
		g.connect(t.From, t.To, t.Label)
	}
	return g.build()
}

// buildLevels assigns every node a breadth-first depth from the roots (nodes
// without incoming edges, in declaration order). Nodes only reachable through
// cycles seed a new traversal at the first unvisited node.
func buildLevels(m *DiagramModel) [][]string {
	indegree := make(map[string]int, len(m.Nodes))
	adj := make(map[string][]string, len(m.Nodes))
	for _, e := range m.Edges {
		if e.From == e.To {
			continue
		}
		adj[e.From] = append(adj[e.From], e.To)
		indegree[e.To]++
	}

	depth := make(map[string]int, len(m.Nodes))
	var levels [][]string
	place := func(id string, d int) {
		depth[id] = d
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], id)
	}

	bfs := func(seeds []string) {
		queue := make([]string, 0, len(m.Nodes))
		for _, id := range seeds {
			if _, seen := depth[id]; !seen {
				place(id, 0)
				queue = append(queue, id)
			}
		}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, next := range adj[cur] {
				if _, seen := depth[next]; seen {
					continue
				}
				place(next, depth[cur]+1)
				queue = append(queue, next)
			}
		}
	}

	var roots []string
	for _, n := range m.Nodes {
		if indegree[n.ID] == 0 {
			roots = append(roots, n.ID)
		}
	}
	bfs(roots)

	for _, n := range m.Nodes {
		if _, seen := depth[n.ID]; !seen {
			bfs([]string{n.ID})
		}
	}
	return levels
}
