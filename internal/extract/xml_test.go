package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pdc/pkg/schema"
)

func TestExtractXML(t *testing.T) {
	doc := `<mxfile host="app.diagrams.net"><diagram id="d1" name="Page-1"></diagram></mxfile>`

	got, err := ExtractXML("```xml\n" + doc + "\n```\nDone.")
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestExtractXML_FirstDocumentWins(t *testing.T) {
	first := `<mxfile><diagram/></mxfile>`
	got, err := ExtractXML(first + "\n" + `<mxfile><other/></mxfile>`)
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestExtractXML_SkipsLongerTagNames(t *testing.T) {
	doc := `<mxfile><diagram/></mxfile>`
	got, err := ExtractXML(`<mxfileinfo>x</mxfileinfo> ` + doc)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	doc = "<mxfile\n  host=\"x\"><diagram/></mxfile>"
	got, err = ExtractXML("<mxfiles/>" + doc)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = ExtractXML(`<mxfileinfo>x</mxfileinfo>`)
	assert.Equal(t, schema.ErrCodeExtraction, schema.ErrorCode(err))
}

func TestExtractXML_Failures(t *testing.T) {
	_, err := ExtractXML("no document here")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExtraction, schema.ErrorCode(err))

	_, err = ExtractXML(`<mxfile><diagram>`)
	require.Error(t, err)
	var pe *schema.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "no_close_tag", pe.Details["reason"])
}

func TestExtractElement(t *testing.T) {
	got, err := ExtractElement(`x <svg width="1"><g/></svg> y`, "svg")
	require.NoError(t, err)
	assert.Equal(t, `<svg width="1"><g/></svg>`, got)
}
