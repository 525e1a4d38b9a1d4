package diagram

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rendis/pdc/internal/isolation"
)

// RenderASCIIAuto tries to render using the mermaid-ascii CLI binary if available,
// falling back to the built-in RenderASCII renderer.
func RenderASCIIAuto(ctx context.Context, model *DiagramModel, binDir string) string {
	if binDir != "" {
		binPath := filepath.Join(binDir, "mermaid-ascii")
		if _, err := os.Stat(binPath); err == nil {
			result, err := RenderASCIIViaCLI(ctx, model, binPath)
			if err == nil {
				return result
			}
		}
	}
	return RenderASCII(model)
}

// cliIsolator runs the mermaid-ascii binary.
var cliIsolator isolation.Isolator = isolation.NewProcessIsolator()

// RenderASCIIViaCLI pipes simplified Mermaid syntax through the mermaid-ascii
// binary under isolation.DefaultLimits.
func RenderASCIIViaCLI(ctx context.Context, model *DiagramModel, binPath string) (string, error) {
	cmd := exec.Command(binPath)
	cmd.Stdin = strings.NewReader(RenderMermaidForCLI(model))

	out, err := isolation.Run(ctx, cliIsolator, cmd, isolation.DefaultLimits())
	if err != nil {
		return "", fmt.Errorf("mermaid-ascii: %w", err)
	}
	return string(out), nil
}

// RenderMermaidForCLI generates the Mermaid subset the mermaid-ascii CLI
// accepts: no ["label"] declarations, labels used directly as node names.
// Isolated nodes are emitted as bare lines so they still appear.
func RenderMermaidForCLI(model *DiagramModel) string {
	var b strings.Builder
	if strings.EqualFold(strings.TrimSpace(model.Direction), "LR") {
		b.WriteString("graph LR\n")
	} else {
		b.WriteString("graph TD\n")
	}

	display := make(map[string]string, len(model.Nodes))
	for _, node := range model.Nodes {
		display[node.ID] = cliNodeID(node)
	}
	resolve := func(id string) string {
		if d, ok := display[id]; ok {
			return d
		}
		return id
	}

	connected := make(map[string]bool, len(model.Nodes))
	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n", resolve(edge.From), label, resolve(edge.To)))
		connected[edge.From] = true
		connected[edge.To] = true
	}

	for _, node := range model.Nodes {
		if !connected[node.ID] {
			b.WriteString(fmt.Sprintf("    %s\n", resolve(node.ID)))
		}
	}

	return b.String()
}

// cliNodeID builds a display ID for the mermaid-ascii CLI from the node label.
func cliNodeID(node *Node) string {
	id := firstLine(node.Label)
	if strings.TrimSpace(id) == "" {
		id = node.ID
	}
	return strings.Join(strings.Fields(id), "-")
}
