package fallback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rendis/pdc/internal/extract"
	"github.com/rendis/pdc/internal/validation"
)

func TestDrawio_Validates(t *testing.T) {
	assert.NoError(t, validation.ValidateDrawio(Drawio()))
}

func TestDrawio_Extractable(t *testing.T) {
	got, err := extract.ExtractXML("noise " + Drawio() + " noise")
	assert.NoError(t, err)
	assert.Equal(t, Drawio(), got)
}

func toObject(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	err = json.Unmarshal(b, &m)
	return m, err
}
