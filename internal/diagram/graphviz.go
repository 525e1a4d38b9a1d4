package diagram

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// ImageFormat selects the graphviz output encoding.
type ImageFormat string

const (
	ImagePNG ImageFormat = "png"
	ImageSVG ImageFormat = "svg"
)

// ContentType returns the MIME type of f.
func (f ImageFormat) ContentType() string {
	if f == ImageSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// RenderImage renders a DiagramModel as a PNG or SVG image using graphviz.
func RenderImage(ctx context.Context, model *DiagramModel, format ImageFormat) ([]byte, error) {
	var gvFormat graphviz.Format
	switch format {
	case ImagePNG, "":
		gvFormat = graphviz.PNG
	case ImageSVG:
		gvFormat = graphviz.SVG
	default:
		return nil, fmt.Errorf("diagram: unsupported image format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(rankDir(model.Direction))
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	gvNodes := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, node := range model.Nodes {
		gvNode, nErr := graph.CreateNodeByName(node.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, nErr)
		}
		gvNode.SetLabel(firstLine(node.Label))
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode
	}

	for _, edge := range model.Edges {
		fromGV, toGV := gvNodes[edge.From], gvNodes[edge.To]
		if fromGV == nil || toGV == nil {
			continue
		}
		e, eErr := graph.CreateEdgeByName("", fromGV, toGV)
		if eErr == nil && edge.Label != "" {
			e.SetLabel(edge.Label)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render %s: %w", format, err)
	}

	return buf.Bytes(), nil
}

// rankDir maps a flowchart direction hint to a graphviz rank direction.
func rankDir(direction string) cgraph.RankDir {
	switch strings.ToUpper(strings.TrimSpace(direction)) {
	case "LR":
		return cgraph.LRRank
	case "RL":
		return cgraph.RLRank
	case "BT":
		return cgraph.BTRank
	default:
		return cgraph.TBRank
	}
}

// applyNodeStyle sets graphviz attributes based on node kind.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	switch node.Kind {
	case NodeKindStep:
		gvNode.SetShape(cgraph.BoxShape)
	case NodeKindState:
		gvNode.SetShape(cgraph.EllipseShape)
	case NodeKindTerminal:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.3)
		gvNode.SetHeight(0.3)
		gvNode.SetStyle(cgraph.FilledNodeStyle)
		gvNode.SetFillColor("black")
		gvNode.SetFontColor("white")
	case NodeKindImplicit:
		gvNode.SetShape(cgraph.BoxShape)
		gvNode.SetStyle(cgraph.DashedNodeStyle)
		gvNode.SetFontColor("#888888")
	}
}
