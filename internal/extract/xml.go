package extract

import (
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// DrawioRoot is the root element of a draw.io document.
const DrawioRoot = "mxfile"

// ExtractXML returns the first <mxfile ...>...</mxfile> span in text.
func ExtractXML(text string) (string, error) {
	return ExtractElement(text, DrawioRoot)
}

// ExtractElement returns the first literal span that opens with "<root" and
// ends with the next "</root>". The opening tag name must end at whitespace,
// '>' or '/', so <mxfileinfo> is not taken for <mxfile>. Matching is
// case-sensitive and nested elements with the same name are not balanced.
func ExtractElement(text, root string) (string, error) {
	closing := "</" + root + ">"

	start := openTag(text, root)
	if start < 0 {
		return "", schema.NewErrorf(schema.ErrCodeExtraction, "no <%s> element found in model output", root).
			WithDetails(map[string]any{"reason": "no_open_tag", "root": root})
	}
	end := strings.Index(text[start:], closing)
	if end < 0 {
		return "", schema.NewErrorf(schema.ErrCodeExtraction, "<%s> element is not closed", root).
			WithDetails(map[string]any{"reason": "no_close_tag", "root": root})
	}
	return text[start : start+end+len(closing)], nil
}

// openTag returns the offset of the first "<root" whose name is complete, or -1.
func openTag(text, root string) int {
	open := "<" + root
	for offset := 0; ; {
		i := strings.Index(text[offset:], open)
		if i < 0 {
			return -1
		}
		at := offset + i
		next := at + len(open)
		if next == len(text) || strings.IndexByte(" \t\r\n>/", text[next]) >= 0 {
			return at
		}
		offset = next
	}
}
