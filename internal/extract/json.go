// Package extract recovers structured documents from free-form model output.
package extract

import (
	"encoding/json"
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// ExtractJSON returns the JSON document embedded in text.
//
// A text that is valid JSON as a whole is returned trimmed, whatever its
// top-level kind. Otherwise the first balanced object starting at the first
// '{' is returned verbatim; prose, code fences and anything after the closing
// brace are ignored.
func ExtractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", schema.NewError(schema.ErrCodeExtraction, "no JSON object found in model output").
			WithDetails(map[string]any{"reason": "no_open_brace", "length": len(text)})
	}

	end := scanObject(text, start)
	if end < 0 {
		return "", schema.NewError(schema.ErrCodeExtraction, "unbalanced JSON object in model output").
			WithDetails(map[string]any{"reason": "unbalanced", "offset": start})
	}
	return text[start : end+1], nil
}

// scanObject returns the index of the brace closing the object opened at
// text[start], or -1. Braces inside string literals are skipped.
//
// Iterating bytes is safe: UTF-8 never encodes '{', '}', '"' or '\\' inside a
// multi-byte sequence.
func scanObject(text string, start int) int {
	depth := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		b := text[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
