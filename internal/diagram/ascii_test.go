package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderASCIILinear(t *testing.T) {
	model, err := FromSpec(linearFlow())
	require.NoError(t, err)

	output := RenderASCII(model)

	assert.Contains(t, output, "=== Flow ===")
	assert.Contains(t, output, "┌")
	assert.Contains(t, output, "┘")
	assert.Contains(t, output, "▼")
	assert.Contains(t, output, "解析需求")
	assert.Contains(t, output, "解析需求 ─→ 结束 [done]")
}

func TestRenderASCIIKindTags(t *testing.T) {
	model := &DiagramModel{
		Nodes: []*Node{
			{ID: "a", Label: "A", Kind: NodeKindState},
			{ID: "b", Label: "B", Kind: NodeKindImplicit},
		},
		Levels: [][]string{{"a", "b"}},
	}

	output := RenderASCII(model)
	assert.Contains(t, output, "(state)")
	assert.Contains(t, output, "[?]")
	assert.NotContains(t, output, "--- edges ---")
}

func TestMakeBox_WideRunes(t *testing.T) {
	box := makeBox(&Node{Label: "开始", Kind: NodeKindStep})
	// Two wide runes occupy four columns, plus borders and padding.
	assert.Equal(t, 8, box.width)
	assert.Equal(t, "│ 开始 │", box.lines[1])
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 3, displayWidth("abc"))
	assert.Equal(t, 4, displayWidth("用户"))
	assert.Equal(t, 6, displayWidth("a（b）"))
}
