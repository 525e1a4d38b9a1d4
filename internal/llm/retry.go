package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rendis/pdc/pkg/schema"
)

// BackoffStrategy shapes the wait between attempts.
type BackoffStrategy string

const (
	BackoffNone        BackoffStrategy = "none"
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy bounds how a Resilient backend retries.
type RetryPolicy struct {
	MaxAttempts int             `yaml:"max_attempts"`
	Delay       time.Duration   `yaml:"delay"`
	MaxDelay    time.Duration   `yaml:"max_delay"`
	Strategy    BackoffStrategy `yaml:"backoff"`
}

// DefaultRetryPolicy is three attempts, doubling from 500ms up to 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Strategy:    BackoffExponential,
	}
}

// DelayFor returns the wait after failed attempt n (0-based). Unknown
// strategies behave as constant.
func (p RetryPolicy) DelayFor(n int) time.Duration {
	if p.Delay <= 0 || p.Strategy == BackoffNone {
		return 0
	}

	d := p.Delay
	switch p.Strategy {
	case BackoffExponential:
		d = p.Delay << n
	case BackoffLinear:
		d = p.Delay * time.Duration(n+1)
	}
	// d <= 0 catches shift overflow.
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		d = p.MaxDelay
	}
	return d
}

// transientMessages mark errors from transports that do not expose a typed
// error.
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"eof",
	"temporary failure",
	"i/o timeout",
	"service unavailable",
	"too many requests",
}

// Retryable reports whether a failed backend call is worth repeating:
// timeouts, network failures, HTTP 429 and 5xx. Cancellation, bad
// configuration and other 4xx answers are final.
func Retryable(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}

	var pErr *schema.PipelineError
	if errors.As(err, &pErr) {
		if !pErr.IsRetryable() {
			return false
		}
		if status, ok := pErr.Details["status"].(int); ok {
			return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
		}
		if pErr.Cause == nil {
			return true
		}
		err = pErr.Cause
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// sleepCtx waits for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
