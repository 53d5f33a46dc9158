package worker

import (
	"sync"
	"sync/atomic"
)

// =============================================================================
// Counter
// =============================================================================

// Counter tracks how many items a pool has handed out.
//
// Counter is safe for concurrent use.
type Counter struct {
	mu      sync.Mutex
	current int
	step    int
	max     int
}

// NewCounter returns a counter starting at 0 that advances by 1.
func NewCounter() *Counter {
	return NewCounterFrom(0, 1)
}

// NewCounterFrom returns a counter starting at start that advances by step.
func NewCounterFrom(start, step int) *Counter {
	if step <= 0 {
		step = 1
	}
	return &Counter{current: start, step: step}
}

// SetMax sets the total announced alongside every increment.
func (c *Counter) SetMax(max int) {
	c.mu.Lock()
	c.max = max
	c.mu.Unlock()
}

// AddMax raises the total by n.
func (c *Counter) AddMax(n int) {
	c.mu.Lock()
	c.max += n
	c.mu.Unlock()
}

// Increment advances the counter and returns the new value with the total.
func (c *Counter) Increment() (current, max int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current += c.step
	return c.current, c.max
}

// Get returns the current value.
func (c *Counter) Get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Max returns the total.
func (c *Counter) Max() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.max
}

// =============================================================================
// Signal
// =============================================================================

// Signal is a one-way stop flag shared by the workers of a pool. Once set it
// stays set.
type Signal struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewSignal returns an unset signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Set raises the signal. It reports whether this call was the one that set it.
func (s *Signal) Set() bool {
	first := false
	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)
		first = true
	})
	return first
}

// IsSet reports whether the signal has been raised.
func (s *Signal) IsSet() bool { return s.set.Load() }

// Done returns a channel closed when the signal is raised.
func (s *Signal) Done() <-chan struct{} { return s.done }

// =============================================================================
// Queue
// =============================================================================

// Queue is a FIFO of pending work items. Pop never blocks: an empty queue
// means the work is done.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	signal *Signal
}

// NewQueue returns an empty queue bound to signal. Once the signal is set,
// Pop hands out nothing.
func NewQueue[T any](signal *Signal) *Queue[T] {
	return &Queue[T]{signal: signal}
}

// Push appends items to the tail of the queue.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
}

// Pop removes the head of the queue. ok is false when the queue is empty or
// the signal is set.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || (q.signal != nil && q.signal.IsSet()) {
		return item, false
	}

	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty reports whether no items are pending.
func (q *Queue[T]) Empty() bool { return q.Len() == 0 }
