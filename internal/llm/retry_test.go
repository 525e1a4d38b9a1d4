package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rendis/pdc/pkg/schema"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"429", statusError("x", 429, "slow down"), true},
		{"503", statusError("x", 503, ""), true},
		{"400", statusError("x", 400, "bad"), false},
		{"config", configError("x", "model"), false},
		{"transport refused", transportError("x", "request", errors.New("dial tcp: connection refused")), true},
		{"transport decode", transportError("x", "decode response", errors.New("invalid character")), false},
		{"plain eof", errors.New("unexpected EOF"), true},
		{"plain other", errors.New("boom"), false},
		{"schema", schema.NewError(schema.ErrCodeSchema, "bad"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Retryable(tc.err))
		})
	}
}

func TestRetryPolicy_DelayFor(t *testing.T) {
	exp := RetryPolicy{Delay: 100 * time.Millisecond, MaxDelay: time.Second, Strategy: BackoffExponential}
	assert.Equal(t, 100*time.Millisecond, exp.DelayFor(0))
	assert.Equal(t, 400*time.Millisecond, exp.DelayFor(2))
	assert.Equal(t, time.Second, exp.DelayFor(5), "capped by MaxDelay")
	assert.Equal(t, time.Second, exp.DelayFor(70), "shift overflow is capped")

	lin := RetryPolicy{Delay: 100 * time.Millisecond, Strategy: BackoffLinear}
	assert.Equal(t, 300*time.Millisecond, lin.DelayFor(2))

	constant := RetryPolicy{Delay: 50 * time.Millisecond, Strategy: BackoffConstant}
	assert.Equal(t, 50*time.Millisecond, constant.DelayFor(7))

	none := RetryPolicy{Delay: 50 * time.Millisecond, Strategy: BackoffNone}
	assert.Equal(t, time.Duration(0), none.DelayFor(1))
	assert.Equal(t, time.Duration(0), RetryPolicy{}.DelayFor(3))
}

func TestSleepCtx_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepCtx(ctx, 0))
}
