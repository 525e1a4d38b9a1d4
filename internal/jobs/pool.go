package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// PoolMetrics is a snapshot of pool activity.
type PoolMetrics struct {
	Size      int   `json:"size"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Panics    int64 `json:"panics"`
}

var ErrPoolShutdown = errors.New("worker pool is shut down")

// Work is one pipeline job. Panics are recovered and count as failures.
type Work func(ctx context.Context) error

// WorkerPool runs at most size jobs at once. Jobs run under the pool's
// lifetime, not the submitter's: an HTTP handler may return long before the
// diagram it queued is rendered.
type WorkerPool struct {
	size   int
	slots  *semaphore.Weighted
	logger *slog.Logger

	life context.Context
	stop context.CancelFunc

	mu      sync.Mutex // guards closed and wg.Add
	closed  bool
	running sync.WaitGroup

	active, completed, failed, panics atomic.Int64
}

func NewWorkerPool(size int, logger *slog.Logger) *WorkerPool {
	size = max(size, 1)
	if logger == nil {
		logger = slog.Default()
	}
	life, stop := context.WithCancel(context.Background())
	return &WorkerPool{
		size:   size,
		slots:  semaphore.NewWeighted(int64(size)),
		logger: logger,
		life:   life,
		stop:   stop,
	}
}

// Submit waits for a free slot, then starts fn. It fails with ctx's error if
// ctx ends first, or ErrPoolShutdown once Shutdown was called. fn sees the
// values of ctx but not its cancellation.
func (p *WorkerPool) Submit(ctx context.Context, name string, fn Work) error {
	acquireCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	unhook := context.AfterFunc(p.life, cancel)
	defer unhook()

	if err := p.slots.Acquire(acquireCtx, 1); err != nil {
		if p.life.Err() != nil {
			return ErrPoolShutdown
		}
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.slots.Release(1)
		return ErrPoolShutdown
	}
	p.running.Add(1)
	p.mu.Unlock()

	p.active.Add(1)
	go func() {
		defer func() {
			p.active.Add(-1)
			p.slots.Release(1)
			p.running.Done()
		}()

		if err := p.run(detach(p.life, ctx), name, fn); err != nil {
			p.failed.Add(1)
			return
		}
		p.completed.Add(1)
	}()
	return nil
}

func (p *WorkerPool) run(ctx context.Context, name string, fn Work) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.ErrorContext(ctx, "pool work panicked", "work", name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until all submitted work has returned.
func (p *WorkerPool) Wait() { p.running.Wait() }

// Shutdown rejects new work, cancels running work and waits for it. It is
// idempotent.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.stop()
	p.running.Wait()
}

func (p *WorkerPool) Metrics() PoolMetrics {
	return PoolMetrics{
		Size:      p.size,
		Active:    p.active.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Panics:    p.panics.Load(),
	}
}

// detachedContext takes its deadline and cancellation from one context and
// its values from another.
type detachedContext struct {
	context.Context
	values context.Context
}

func (c detachedContext) Value(key any) any { return c.values.Value(key) }

func detach(lifetime, values context.Context) context.Context {
	return detachedContext{Context: lifetime, values: values}
}
