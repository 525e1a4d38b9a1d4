// Package isolation runs helper binaries under a deadline, with bounded
// output and a scrubbed environment, and keeps file paths inside their roots.
package isolation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Limits constrain a single external process run.
type Limits struct {
	Timeout        time.Duration
	MaxOutputBytes int64
	// Env replaces the parent environment when non-nil. An empty, non-nil
	// slice runs the process with no environment at all.
	Env []string
}

// DefaultLimits suit short renderer invocations.
func DefaultLimits() Limits {
	return Limits{
		Timeout:        10 * time.Second,
		MaxOutputBytes: 1 << 20,
		Env:            []string{"LANG=C.UTF-8"},
	}
}

// ErrOutputLimit is returned by Run when the process writes more than
// Limits.MaxOutputBytes to stdout.
var ErrOutputLimit = errors.New("isolation: output limit exceeded")

// Isolator wraps a command with process constraints.
type Isolator interface {
	Wrap(ctx context.Context, cmd *exec.Cmd, limits Limits) (*exec.Cmd, func(), error)
}

// Run executes cmd through iso and returns its stdout. Stdin is taken from
// cmd. A non-zero exit is reported together with the tail of stderr.
func Run(ctx context.Context, iso Isolator, cmd *exec.Cmd, limits Limits) ([]byte, error) {
	stdout := &cappedBuffer{limit: limits.MaxOutputBytes}
	stderr := &cappedBuffer{limit: 4 << 10}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runCtx := ctx
	if limits.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, limits.Timeout)
		defer cancel()
	}

	wrapped, cleanup, err := iso.Wrap(runCtx, cmd, limits)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	runErr := wrapped.Run()
	if stdout.overflow {
		return nil, fmt.Errorf("%w (%d bytes)", ErrOutputLimit, limits.MaxOutputBytes)
	}
	if runErr != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Path, ctxErr)
		}
		return nil, fmt.Errorf("%s: %w: %s", cmd.Path, runErr, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// cappedBuffer keeps at most limit bytes and records whether more arrived.
// A non-positive limit means unbounded.
type cappedBuffer struct {
	bytes.Buffer
	limit    int64
	overflow bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if c.limit <= 0 {
		return c.Buffer.Write(p)
	}
	room := c.limit - int64(c.Buffer.Len())
	if int64(len(p)) > room {
		c.overflow = true
		if room > 0 {
			c.Buffer.Write(p[:room])
		}
		// The excess is dropped; Run reports the overflow.
		return len(p), nil
	}
	return c.Buffer.Write(p)
}
