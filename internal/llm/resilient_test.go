package llm

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/pdc/pkg/schema"
)

// scriptedBackend returns errs in order, then succeeds.
type scriptedBackend struct {
	errs  []error
	calls atomic.Int32
}

func (s *scriptedBackend) Name() string { return "scripted" }

func (s *scriptedBackend) Chat(_ context.Context, _ ChatRequest) (*ChatResponse, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.errs) {
		return nil, s.errs[n]
	}
	return &ChatResponse{Content: "ok"}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Delay: time.Millisecond, Strategy: BackoffConstant}
}

func TestResilient_RetriesTransientErrors(t *testing.T) {
	inner := &scriptedBackend{errs: []error{statusError("scripted", 503, ""), statusError("scripted", 429, "")}}
	r := NewResilient(inner, fastPolicy(3), nil, quietLogger())

	resp, err := r.Chat(context.Background(), NewChatRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, "closed", r.Circuit().State)
}

func TestResilient_StopsOnPermanentError(t *testing.T) {
	inner := &scriptedBackend{errs: []error{statusError("scripted", 401, "bad key")}}
	r := NewResilient(inner, fastPolicy(3), nil, quietLogger())

	_, err := r.Chat(context.Background(), NewChatRequest(nil))
	require.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestResilient_ExhaustsAttempts(t *testing.T) {
	boom := statusError("scripted", 500, "")
	inner := &scriptedBackend{errs: []error{boom, boom, boom, boom}}
	r := NewResilient(inner, fastPolicy(2), nil, quietLogger())

	_, err := r.Chat(context.Background(), NewChatRequest(nil))
	assert.Same(t, boom, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestResilient_CircuitOpens(t *testing.T) {
	boom := statusError("scripted", 500, "")
	inner := &scriptedBackend{errs: []error{boom, boom, boom}}
	breaker := NewCircuitBreaker("scripted", CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	r := NewResilient(inner, fastPolicy(1), breaker, quietLogger())

	_, _ = r.Chat(context.Background(), NewChatRequest(nil))
	_, _ = r.Chat(context.Background(), NewChatRequest(nil))

	_, err := r.Chat(context.Background(), NewChatRequest(nil))
	assert.Equal(t, schema.ErrCodeCircuitOpen, schema.ErrorCode(err))
	assert.Equal(t, int32(2), inner.calls.Load(), "open circuit short-circuits the backend")
}
