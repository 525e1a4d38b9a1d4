package llm

import (
	"context"
	"log/slog"
	"os"
)

// Resilient wraps a Backend with retries and a circuit breaker. The pipeline
// itself never retries.
type Resilient struct {
	backend Backend
	policy  RetryPolicy
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// NewResilient wraps backend. A nil breaker gets the default config.
func NewResilient(backend Backend, policy RetryPolicy, breaker *CircuitBreaker, logger *slog.Logger) *Resilient {
	if breaker == nil {
		breaker = NewCircuitBreaker(backend.Name(), DefaultCircuitBreakerConfig())
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Resilient{backend: backend, policy: policy, breaker: breaker, logger: logger}
}

// Name implements Backend.
func (r *Resilient) Name() string { return r.backend.Name() }

// Circuit reports the breaker state for diagnostics.
func (r *Resilient) Circuit() CircuitSnapshot { return r.breaker.Snapshot() }

// Chat implements Backend.
func (r *Resilient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	name := r.backend.Name()

	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if err := r.breaker.Allow(); err != nil {
			return nil, err
		}

		resp, err := r.backend.Chat(ctx, req)
		if err == nil {
			r.breaker.Success()
			return resp, nil
		}
		lastErr = err

		if !Retryable(err) {
			return nil, err
		}
		state := r.breaker.Failure()
		if attempt == r.policy.MaxAttempts-1 {
			break
		}

		delay := r.policy.DelayFor(attempt)
		r.logger.Warn("backend call failed, retrying",
			"backend", name,
			"attempt", attempt+1,
			"max_attempts", r.policy.MaxAttempts,
			"circuit", state.String(),
			"delay", delay,
			"error", err,
		)
		if waitErr := sleepCtx(ctx, delay); waitErr != nil {
			return nil, waitErr
		}
	}
	return nil, lastErr
}
