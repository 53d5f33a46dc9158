package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/xtxerr/hgtload/internal/errors"
)

// =============================================================================
// Job / Processor
// =============================================================================

// Job is one popped item together with the pool progress at pop time.
type Job[T any] struct {
	Item    T
	Current int // position of this item, 1-based
	Total   int // number of items the pool was filled with

	signal *Signal
}

// Cancelled reports whether the pool has been asked to stop. Long running
// processors check it between units of work and return early when set.
func (j Job[T]) Cancelled() bool {
	return j.signal != nil && j.signal.IsSet()
}

// NewJob builds a standalone job, for driving a Processor outside a pool.
func NewJob[T any](item T, current, total int, signal *Signal) Job[T] {
	return Job[T]{Item: item, Current: current, Total: total, signal: signal}
}

// Processor handles one work item. A returned error stops the whole pool.
type Processor[T any] interface {
	Process(ctx context.Context, job Job[T]) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc[T any] func(ctx context.Context, job Job[T]) error

// Process calls f.
func (f ProcessorFunc[T]) Process(ctx context.Context, job Job[T]) error {
	return f(ctx, job)
}

// =============================================================================
// State
// =============================================================================

// State is the lifecycle stage of a Worker.
type State int32

const (
	StateIdle     State = iota // created, not started
	StateRunning               // popping and processing items
	StateDraining              // queue found empty
	StateAborting              // stop signal observed or raised
	StateStopped               // goroutine returned
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateAborting:
		return "aborting"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// =============================================================================
// Worker
// =============================================================================

// Worker pops items from a shared queue until it is empty or the stop signal
// is set. The first failure raises the signal for every worker of the pool.
type Worker[T any] struct {
	id      int
	proc    Processor[T]
	queue   *Queue[T]
	counter *Counter
	signal  *Signal
	log     *slog.Logger

	state     atomic.Int32
	processed atomic.Int64
	err       atomic.Pointer[error]
}

func newWorker[T any](id int, proc Processor[T], q *Queue[T], c *Counter, s *Signal, log *slog.Logger) *Worker[T] {
	return &Worker[T]{
		id:      id,
		proc:    proc,
		queue:   q,
		counter: c,
		signal:  s,
		log:     log.With("worker", id),
	}
}

// ID returns the worker id, starting at 1.
func (w *Worker[T]) ID() int { return w.id }

// State returns the current lifecycle state.
func (w *Worker[T]) State() State { return State(w.state.Load()) }

// Processed returns how many items this worker completed successfully.
func (w *Worker[T]) Processed() int { return int(w.processed.Load()) }

// Err returns the processing error that stopped this worker, if any.
func (w *Worker[T]) Err() error {
	if p := w.err.Load(); p != nil {
		return *p
	}
	return nil
}

func (w *Worker[T]) setState(s State) { w.state.Store(int32(s)) }

// Run processes items until the queue drains or the signal is set.
func (w *Worker[T]) Run(ctx context.Context) {
	w.setState(StateRunning)
	defer w.setState(StateStopped)

	for {
		if w.signal.IsSet() {
			w.setState(StateAborting)
			w.log.Debug("worker stopping on signal")
			return
		}

		item, ok := w.queue.Pop()
		if !ok {
			if w.signal.IsSet() {
				w.setState(StateAborting)
			} else {
				w.setState(StateDraining)
			}
			return
		}

		current, total := w.counter.Increment()
		job := Job[T]{Item: item, Current: current, Total: total, signal: w.signal}

		if err := w.execute(ctx, job); err != nil {
			perr := errors.NewProcessing(w.id, item, err)
			w.err.Store(&perr)
			w.log.Error("processing failed", "item", fmt.Sprint(item), "error", err)
			w.signal.Set()
			w.setState(StateAborting)
			return
		}
		w.processed.Add(1)
	}
}

// execute runs the processor, converting a panic into an error.
func (w *Worker[T]) execute(ctx context.Context, job Job[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.proc.Process(ctx, job)
}
