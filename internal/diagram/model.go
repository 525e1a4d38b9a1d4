package diagram

// NodeKind classifies a preview node.
type NodeKind string

const (
	NodeKindStep     NodeKind = "step"     // declared flow node
	NodeKindState    NodeKind = "state"    // declared state
	NodeKindTerminal NodeKind = "terminal" // [*] pseudo-state
	NodeKindImplicit NodeKind = "implicit" // referenced by an edge but never declared
)

// DiagramModel is the intermediate representation used by the preview renderers.
type DiagramModel struct {
	Title     string
	Direction string
	Nodes     []*Node
	Edges     []Edge
	Levels    [][]string
}

// Node is a single box in the preview. ID is already grammar-safe.
type Node struct {
	ID    string
	Label string
	Kind  NodeKind
}

// Edge connects two node ids.
type Edge struct {
	From  string
	To    string
	Label string
}

// node looks up a node by ID.
func (m *DiagramModel) node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
