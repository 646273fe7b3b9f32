// Package worker runs typed jobs on fixed-size goroutine pools. Each pipeline
// stage owns one pool; callers submit work and collect a Future.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var ErrPoolClosed = errors.New("worker pool is closed")

type Handler[In, Out any] func(ctx context.Context, in In) (Out, error)

// Future is the pending result of one submitted job.
type Future[Out any] struct {
	done chan struct{}
	out  Out
	err  error
}

func newFuture[Out any]() *Future[Out] {
	return &Future[Out]{done: make(chan struct{})}
}

func (f *Future[Out]) resolve(out Out, err error) {
	f.out, f.err = out, err
	close(f.done)
}

func (f *Future[Out]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job settles or ctx is done. A cancelled ctx does not
// cancel the job itself.
func (f *Future[Out]) Wait(ctx context.Context) (Out, error) {
	select {
	case <-f.done:
		return f.out, f.err
	case <-ctx.Done():
		var zero Out
		return zero, ctx.Err()
	}
}

type task[In, Out any] struct {
	ctx    context.Context
	in     In
	future *Future[Out]
}

type options struct {
	queueSize int
	logger    zerolog.Logger
}

type Option func(*options)

func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

type Pool[In, Out any] struct {
	name    string
	size    int
	handler Handler[In, Out]
	tasks   chan task[In, Out]
	log     zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
	workers sync.WaitGroup
}

// NewPool starts size workers running handler. Wrap handler with Chain to add
// middleware.
func NewPool[In, Out any](name string, size int, handler Handler[In, Out], opts ...Option) *Pool[In, Out] {
	if size < 1 {
		size = 1
	}
	o := &options{queueSize: size * 4, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(o)
	}

	p := &Pool[In, Out]{
		name:    name,
		size:    size,
		handler: handler,
		tasks:   make(chan task[In, Out], o.queueSize),
		log:     o.logger.With().Str("pool", name).Logger(),
	}

	p.workers.Add(size)
	for i := 0; i < size; i++ {
		go p.work(i)
	}
	p.log.Debug().Int("size", size).Int("queue_size", o.queueSize).Msg("worker pool started")
	return p
}

func (p *Pool[In, Out]) Name() string { return p.name }

func (p *Pool[In, Out]) Size() int { return p.size }

func (p *Pool[In, Out]) work(id int) {
	defer p.workers.Done()
	for t := range p.tasks {
		out, err := p.handler(t.ctx, t.in)
		t.future.resolve(out, err)
	}
	p.log.Debug().Int("worker", id).Msg("worker stopped")
}

// Submit queues in and returns immediately. When the queue is full the hand
// off continues on a separate goroutine so the caller never blocks.
func (p *Pool[In, Out]) Submit(ctx context.Context, in In) *Future[Out] {
	f := newFuture[Out]()

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		var zero Out
		f.resolve(zero, ErrPoolClosed)
		return f
	}

	t := task[In, Out]{ctx: ctx, in: in, future: f}
	select {
	case p.tasks <- t:
	default:
		p.pending.Add(1)
		go func() {
			defer p.pending.Done()
			p.tasks <- t
		}()
	}
	return f
}

// Close stops accepting work, waits for every queued job to finish and stops
// the workers.
func (p *Pool[In, Out]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.pending.Wait()
	close(p.tasks)
	p.workers.Wait()
	p.log.Debug().Msg("worker pool closed")
}
