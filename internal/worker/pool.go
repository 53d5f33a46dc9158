// Package worker provides a fixed-size, fail-fast worker pool.
//
// A Pool is filled once with every item, then started. Workers pop items
// from a shared queue without waiting on a producer, so an empty queue ends
// the run. The first processing error raises a shared stop signal: no new
// item is handed out after that, in-flight processors observe it through
// Job.Cancelled, and Start reports ErrPoolFailure.
//
// Usage:
//
//	pool := worker.New(4, func(id int) worker.Processor[string] {
//	    return importer.New(opts)
//	}, worker.WithName("import"))
//	pool.Fill(paths...)
//	if err := pool.Start(ctx); err != nil { ... }
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xtxerr/hgtload/config"
	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/logging"
)

// =============================================================================
// Options
// =============================================================================

type poolOptions struct {
	name         string
	log          *slog.Logger
	pollInterval time.Duration
}

// Option configures a Pool.
type Option func(*poolOptions)

// WithName labels the pool in logs and errors.
func WithName(name string) Option {
	return func(o *poolOptions) { o.name = name }
}

// WithLogger sets the logger used by the pool and its workers.
func WithLogger(l *slog.Logger) Option {
	return func(o *poolOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// WithPollInterval sets how often Start logs progress while waiting.
// Zero disables progress logging.
func WithPollInterval(d time.Duration) Option {
	return func(o *poolOptions) { o.pollInterval = d }
}

// =============================================================================
// Pool
// =============================================================================

// Pool runs a fixed set of workers over a shared queue.
type Pool[T any] struct {
	name    string
	log     *slog.Logger
	poll    time.Duration
	queue   *Queue[T]
	counter *Counter
	signal  *Signal
	workers []*Worker[T]

	startOnce sync.Once
}

// New creates a pool of size workers. factory is called once per worker
// with ids 1..size. A size below 1 is raised to 1.
func New[T any](size int, factory func(id int) Processor[T], opts ...Option) *Pool[T] {
	o := poolOptions{
		name:         "pool",
		pollInterval: config.DefaultPoolPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Component(o.name)
	}
	if size < 1 {
		size = 1
	}

	signal := NewSignal()
	p := &Pool[T]{
		name:    o.name,
		log:     o.log,
		poll:    o.pollInterval,
		queue:   NewQueue[T](signal),
		counter: NewCounter(),
		signal:  signal,
		workers: make([]*Worker[T], 0, size),
	}
	for id := 1; id <= size; id++ {
		p.workers = append(p.workers, newWorker(id, factory(id), p.queue, p.counter, signal, o.log))
	}
	return p
}

// Fill enqueues items and raises the counter total accordingly.
func (p *Pool[T]) Fill(items ...T) {
	p.queue.Push(items...)
	p.counter.AddMax(len(items))
}

// Workers returns the pool workers.
func (p *Pool[T]) Workers() []*Worker[T] { return p.workers }

// Remaining returns the number of items never handed out.
func (p *Pool[T]) Remaining() int { return p.queue.Len() }

// Started returns how many items were handed out to workers.
func (p *Pool[T]) Started() int { return p.counter.Get() }

// Total returns how many items the pool was filled with.
func (p *Pool[T]) Total() int { return p.counter.Max() }

// Stop raises the stop signal. Workers finish their current item at the
// next checkpoint and take no new ones.
func (p *Pool[T]) Stop() { p.signal.Set() }

// Stopped reports whether the stop signal has been raised.
func (p *Pool[T]) Stopped() bool { return p.signal.IsSet() }

// Errors returns the processing errors raised by workers.
func (p *Pool[T]) Errors() []error {
	var errs []error
	for _, w := range p.workers {
		if err := w.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Start runs every worker and blocks until all of them have returned.
//
// Processors receive a context that is not cancelled with ctx; cancellation
// reaches them only through the stop signal. When ctx is done, Start raises
// the signal, waits for the workers to drain and returns ctx.Err(). When a
// worker failed, Start returns an error wrapping ErrPoolFailure.
//
// A pool runs once; subsequent calls return immediately with the outcome
// of the stop signal.
func (p *Pool[T]) Start(ctx context.Context) error {
	ran := false
	p.startOnce.Do(func() { ran = true })
	if !ran {
		return p.result()
	}

	p.log.Info("pool starting", "workers", len(p.workers), "items", p.queue.Len())

	workCtx := context.WithoutCancel(ctx)
	done := make(chan struct{})

	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker[T]) {
			defer wg.Done()
			w.Run(workCtx)
		}(w)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	var tick <-chan time.Time
	if p.poll > 0 {
		ticker := time.NewTicker(p.poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-done:
			return p.result()

		case <-ctx.Done():
			p.log.Warn("interrupted, waiting for workers to stop")
			p.signal.Set()
			<-done
			return ctx.Err()

		case <-tick:
			p.log.Debug("pool progress",
				"started", p.counter.Get(),
				"total", p.counter.Max(),
				"remaining", p.queue.Len())
		}
	}
}

func (p *Pool[T]) result() error {
	if p.signal.IsSet() {
		return fmt.Errorf("%s: %w", p.name, errors.ErrPoolFailure)
	}
	p.log.Info("pool finished", "processed", p.counter.Get())
	return nil
}
