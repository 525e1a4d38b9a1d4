package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pdc/pkg/schema"
)

const validDrawio = `<?xml version="1.0" encoding="UTF-8"?>
<mxfile host="app.diagrams.net">
  <diagram id="d1" name="Page-1">
    <mxGraphModel><root><mxCell id="0"/></root></mxGraphModel>
  </diagram>
</mxfile>`

func TestValidateDrawio_Valid(t *testing.T) {
	assert.NoError(t, ValidateDrawio(validDrawio))
	assert.NoError(t, DrawioValidator{}.ValidateDrawio(`<mxfile><diagram/></mxfile>`))
}

func TestValidateDrawio_Rules(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		rule string
	}{
		{"empty", "   \n", RuleEmpty},
		{"too large", "<mxfile><diagram/>" + strings.Repeat(" ", DrawioMaxChars) + "</mxfile>", RuleTooLarge},
		{"not xml", "hello world", RuleMalformed},
		{"unclosed", "<mxfile><diagram>", RuleMalformed},
		{"mismatched", "<mxfile><diagram></mxfile></diagram>", RuleMalformed},
		{"two roots", "<mxfile><diagram/></mxfile><mxfile/>", RuleMalformed},
		{"wrong root", `<svg><diagram/></svg>`, RuleWrongRoot},
		{"missing diagram", `<mxfile><page/></mxfile>`, RuleMissingDiagram},
		{"nested diagram does not count", `<mxfile><page><diagram/></page></mxfile>`, RuleMissingDiagram},
		{"prefixed root", `<x:mxfile xmlns:x="urn:x"><x:diagram/></x:mxfile>`, RuleWrongRoot},
		{"default namespace root", `<mxfile xmlns="urn:x"><diagram/></mxfile>`, RuleWrongRoot},
		{"prefixed diagram", `<mxfile xmlns:x="urn:x"><x:diagram/></mxfile>`, RuleMissingDiagram},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDrawio(tc.doc)
			require.Error(t, err)

			var pe *schema.PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, schema.ErrCodeStructure, pe.Code)
			assert.Equal(t, tc.rule, pe.Details["rule"])
		})
	}
}

func TestValidateDrawio_WrongRootDistinctFromMissingDiagram(t *testing.T) {
	wrong := ValidateDrawio(`<graph><diagram/></graph>`)
	missing := ValidateDrawio(`<mxfile></mxfile>`)

	var a, b *schema.PipelineError
	require.ErrorAs(t, wrong, &a)
	require.ErrorAs(t, missing, &b)
	assert.NotEqual(t, a.Details["rule"], b.Details["rule"])
}

func TestValidateDrawio_SizeCountsCharacters(t *testing.T) {
	// Under the limit in characters, over it in bytes.
	filler := strings.Repeat("图", DrawioMaxChars/2)
	doc := "<mxfile><diagram>" + filler + "</diagram></mxfile>"
	assert.NoError(t, ValidateDrawio(doc))
}
