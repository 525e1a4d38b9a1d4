package isolation

import (
	"context"
	"os/exec"
	"time"
)

var _ Isolator = (*ProcessIsolator)(nil)

// ProcessIsolator enforces the timeout and environment of Limits with plain
// os/exec. It does not limit memory or CPU.
type ProcessIsolator struct {
	// WaitDelay bounds pipe draining after the process is killed.
	WaitDelay time.Duration
}

func NewProcessIsolator() *ProcessIsolator {
	return &ProcessIsolator{WaitDelay: 2 * time.Second}
}

// Wrap clones cmd onto a context-aware exec.Cmd. The returned cleanup must be
// called after the process exits; the caller must run the returned command,
// not the original.
func (p *ProcessIsolator) Wrap(ctx context.Context, cmd *exec.Cmd, limits Limits) (*exec.Cmd, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	execCtx := ctx
	cancel := context.CancelFunc(func() {})
	if limits.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, limits.Timeout)
	}

	wrapped := exec.CommandContext(execCtx, cmd.Path, cmd.Args[1:]...)
	wrapped.Args = cmd.Args
	wrapped.Dir = cmd.Dir
	wrapped.Env = cmd.Env
	if limits.Env != nil {
		wrapped.Env = limits.Env
	}
	wrapped.Stdin = cmd.Stdin
	wrapped.Stdout = cmd.Stdout
	wrapped.Stderr = cmd.Stderr

	wrapped.Cancel = func() error {
		if wrapped.Process != nil {
			return wrapped.Process.Kill()
		}
		return nil
	}
	wrapped.WaitDelay = p.WaitDelay

	return wrapped, func() { cancel() }, nil
}
