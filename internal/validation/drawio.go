package validation

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rendis/pdc/pkg/schema"
)

// draw.io document limits.
const (
	DrawioRootTag    = "mxfile"
	DrawioDiagramTag = "diagram"
	DrawioMaxChars   = 400_000
)

// Structure rules, reported in the "rule" detail of STRUCTURE_INVALID errors.
const (
	RuleEmpty          = "empty"
	RuleTooLarge       = "too_large"
	RuleMalformed      = "malformed"
	RuleWrongRoot      = "wrong_root"
	RuleMissingDiagram = "missing_diagram"
)

// DrawioValidator enforces the draw.io document rules in order: empty,
// too_large, malformed, wrong_root, missing_diagram.
type DrawioValidator struct{}

// ValidateDrawio satisfies DocumentValidator.
func (DrawioValidator) ValidateDrawio(doc string) error {
	return ValidateDrawio(doc)
}

// ValidateDrawio checks doc and returns a STRUCTURE_INVALID error naming the
// first violated rule, or nil.
func ValidateDrawio(doc string) error {
	if strings.TrimSpace(doc) == "" {
		return structureError(RuleEmpty, "draw.io document is empty", nil)
	}
	if n := utf8.RuneCountInString(doc); n >= DrawioMaxChars {
		return structureError(RuleTooLarge, "draw.io document is too large", map[string]any{
			"length": n, "limit": DrawioMaxChars,
		})
	}

	root, hasDiagram, err := scanDrawio(doc)
	if err != nil {
		return structureError(RuleMalformed, "draw.io document is not well-formed XML", nil).WithCause(err)
	}
	if root != DrawioRootTag {
		return structureError(RuleWrongRoot, "draw.io root element must be <mxfile>", map[string]any{"root": root})
	}
	if !hasDiagram {
		return structureError(RuleMissingDiagram, "draw.io document has no <diagram> element", nil)
	}
	return nil
}

// scanDrawio reads the whole document, returning the root tag and whether the
// root has a direct <diagram> child. Content after the root element other than
// whitespace, comments and processing instructions is malformed.
func scanDrawio(doc string) (root string, hasDiagram bool, err error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	depth := 0
	closed := false

	for {
		tok, tokErr := dec.Token()
		if errors.Is(tokErr, io.EOF) {
			break
		}
		if tokErr != nil {
			return "", false, tokErr
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if closed {
				return "", false, errors.New("multiple root elements")
			}
			if depth == 0 {
				root = qualifiedName(el.Name)
			} else if depth == 1 && qualifiedName(el.Name) == DrawioDiagramTag {
				hasDiagram = true
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				closed = true
			}
		case xml.CharData:
			if depth == 0 && strings.TrimSpace(string(el)) != "" {
				return "", false, errors.New("text outside the root element")
			}
		}
	}

	if root == "" {
		return "", false, errors.New("no root element")
	}
	return root, hasDiagram, nil
}

// qualifiedName keeps the namespace of a resolved element name, so only an
// unqualified <mxfile> or <diagram> matches the expected tags.
func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func structureError(rule, msg string, details map[string]any) *schema.PipelineError {
	d := map[string]any{"rule": rule}
	for k, v := range details {
		d[k] = v
	}
	return schema.NewError(schema.ErrCodeStructure, msg).WithDetails(d)
}

var _ DocumentValidator = DrawioValidator{}
