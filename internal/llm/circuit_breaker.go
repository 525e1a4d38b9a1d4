package llm

import (
	"sync"
	"time"

	"github.com/rendis/pdc/pkg/schema"
)

// CircuitState is the state of a backend's circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // calls pass
	CircuitOpen                         // calls rejected until the cooldown ends
	CircuitHalfOpen                     // a limited number of probes pass
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// CircuitBreakerConfig tunes a breaker. Counted failures are the retryable
// ones; a 401 never opens the circuit.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"` // consecutive failures before opening
	Cooldown         time.Duration `yaml:"cooldown"`          // open duration before probing
	HalfOpenMax      int           `yaml:"half_open_max"`     // probes allowed while half-open
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenMax:      1,
	}
}

// CircuitSnapshot is a point-in-time view of a breaker, reported by the
// backend ping.
type CircuitSnapshot struct {
	Backend             string `json:"backend"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	RetryIn             string `json:"retry_in,omitempty"`
}

// CircuitBreaker guards calls to one backend.
type CircuitBreaker struct {
	backend string
	cfg     CircuitBreakerConfig
	now     func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	openedAt    time.Time
	probesTaken int
}

func NewCircuitBreaker(backend string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultCircuitBreakerConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCircuitBreakerConfig().Cooldown
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	return &CircuitBreaker{backend: backend, cfg: cfg, now: time.Now}
}

// Allow returns nil when a call may proceed, or a CIRCUIT_OPEN error.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.advance()
	switch cb.state {
	case CircuitOpen:
		return schema.NewErrorf(schema.ErrCodeCircuitOpen,
			"circuit breaker open for backend %q after %d consecutive failures", cb.backend, cb.failures).
			WithDetails(map[string]any{
				"backend":              cb.backend,
				"consecutive_failures": cb.failures,
				"retry_in":             cb.retryIn().String(),
			})
	case CircuitHalfOpen:
		if cb.probesTaken >= cb.cfg.HalfOpenMax {
			return schema.NewErrorf(schema.ErrCodeCircuitOpen,
				"circuit breaker half-open for backend %q: probe already in flight", cb.backend).
				WithDetails(map[string]any{"backend": cb.backend})
		}
		cb.probesTaken++
	}
	return nil
}

// Success closes the circuit.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.probesTaken = 0
}

// Failure counts a failed call and returns the resulting state. A failed
// probe reopens the circuit at once.
func (cb *CircuitBreaker) Failure() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.state = CircuitOpen
		cb.openedAt = cb.now()
		cb.probesTaken = 0
	}
	return cb.state
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advance()
	return cb.state
}

func (cb *CircuitBreaker) Snapshot() CircuitSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.advance()

	s := CircuitSnapshot{
		Backend:             cb.backend,
		State:               cb.state.String(),
		ConsecutiveFailures: cb.failures,
	}
	if cb.state == CircuitOpen {
		s.RetryIn = cb.retryIn().Round(time.Second).String()
	}
	return s
}

// advance moves an open circuit to half-open once the cooldown has passed.
// Callers hold mu.
func (cb *CircuitBreaker) advance() {
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		cb.state = CircuitHalfOpen
		cb.probesTaken = 0
	}
}

func (cb *CircuitBreaker) retryIn() time.Duration {
	return max(cb.cfg.Cooldown-cb.now().Sub(cb.openedAt), 0)
}
