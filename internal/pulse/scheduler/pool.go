package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool is a fixed set of long-lived workers shared by every cycle.
type Pool struct {
	tasks  chan func()
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	size   int
	panics atomic.Int64
	logger *slog.Logger
}

// NewPool starts size workers.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		tasks:  make(chan func()),
		done:   make(chan struct{}),
		size:   size,
		logger: slog.Default(),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

// SetLogger overrides the default logger.
func (p *Pool) SetLogger(l *slog.Logger) { p.logger = l }

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Panics returns how many tasks have panicked so far.
func (p *Pool) Panics() int64 { return p.panics.Load() }

// Submit hands fn to an idle worker. It blocks until a worker accepts the
// task, ctx ends, or the pool is closed.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}
	select {
	case p.tasks <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPoolClosed
	}
}

// Close stops the workers after their current task and waits for them.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case fn := <-p.tasks:
			p.run(id, fn)
		}
	}
}

func (p *Pool) run(id int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("task panicked", "worker", id, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
