package llm

import (
	"fmt"
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// MaxErrorBody caps how much of a failed response body is echoed in errors.
const MaxErrorBody = 1200

// truncateBody trims body and cuts it to MaxErrorBody runes.
func truncateBody(body string) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) > MaxErrorBody {
		return string(runes[:MaxErrorBody]) + "…"
	}
	return body
}

// statusError reports a non-2xx backend response.
func statusError(backend string, status int, body string) *schema.PipelineError {
	return schema.NewErrorf(schema.ErrCodeBackend,
		"%s gateway error HTTP %d: %s", backend, status, truncateBody(body)).
		WithDetails(map[string]any{
			"backend": backend,
			"status":  status,
		})
}

// transportError wraps a failure to reach or decode from the backend.
func transportError(backend, op string, err error) *schema.PipelineError {
	return schema.NewErrorf(schema.ErrCodeBackend, "%s %s: %v", backend, op, err).
		WithCause(err).
		WithDetails(map[string]any{"backend": backend})
}

// configError reports a missing or invalid backend setting.
func configError(backend, field string) *schema.PipelineError {
	return schema.NewError(schema.ErrCodeValidation,
		fmt.Sprintf("%s backend requires %s", backend, field)).
		WithDetails(map[string]any{"backend": backend, "field": field})
}
