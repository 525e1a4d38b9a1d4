package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rendis/pdc/pkg/schema"
)

// maxBodyBytes bounds request bodies. Draw.io documents are the largest input.
const maxBodyBytes = 2 << 20

// errorBody is the wire form of every error response.
type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeError maps err to a status code and writes the error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	payload := errorPayload{Code: schema.ErrCodeInternal, Message: err.Error()}
	var pe *schema.PipelineError
	if errors.As(err, &pe) {
		payload = errorPayload{Code: pe.Code, Message: pe.Message, Details: pe.Details}
	}

	status := statusFor(payload.Code)
	if status >= http.StatusInternalServerError {
		s.deps.Logger.ErrorContext(r.Context(), "request failed", "code", payload.Code, "error", err)
	} else {
		s.deps.Logger.DebugContext(r.Context(), "request rejected", "code", payload.Code, "error", err)
	}
	writeJSON(w, status, errorBody{Error: payload})
}

// statusFor maps an error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case schema.ErrCodeValidation, schema.ErrCodeNotObject, schema.ErrCodeMissingType,
		schema.ErrCodeSchema, schema.ErrCodeStructure, schema.ErrCodeUnsupportedType:
		return http.StatusUnprocessableEntity
	case schema.ErrCodeExtraction, schema.ErrCodeBackend:
		return http.StatusBadGateway
	case schema.ErrCodeCircuitOpen, schema.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid JSON body: %v", err).WithCause(err)
	}
	return nil
}

// unavailable is returned by routes whose optional dependency is not configured.
func unavailable(what string) error {
	return schema.NewErrorf(schema.ErrCodeUnavailable, "%s is not configured", what).
		WithDetails(map[string]any{"dependency": what})
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, schema.NewErrorf(schema.ErrCodeValidation, "%s must be a non-negative integer", key).
			WithDetails(map[string]any{"param": key, "value": v})
	}
	return n, nil
}

// rawSpec accepts a spec either as a JSON object or as a string holding
// model output, and returns the text to extract from.
func rawSpec(msg json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(msg))
	if trimmed == "" || trimmed == "null" {
		return "", schema.NewError(schema.ErrCodeValidation, "spec is required")
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return "", schema.NewErrorf(schema.ErrCodeValidation, "spec string: %v", err)
		}
		return s, nil
	}
	return trimmed, nil
}
