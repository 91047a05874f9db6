package mailbox

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
)

// unboundedQueue is the FIFO backing an unbounded typed port. Unlike a
// fixed-capacity Go channel, it never blocks a push: the deque grows to
// absorb whatever arrives, queues stay unbounded by design rather than
// relying on a blocking send for backpressure. notify is a capacity-1
// signal channel a blocking recv selects on: the producer signals directly
// rather than routing through a separate worker goroutine.
type unboundedQueue[M any] struct {
	mu     sync.Mutex
	items  deque.Deque[M]
	closed bool
	notify chan struct{}
}

func newUnboundedQueue[M any]() *unboundedQueue[M] {
	return &unboundedQueue[M]{notify: make(chan struct{}, 1)}
}

func (q *unboundedQueue[M]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// push appends v and reports whether the queue accepted it. It never
// blocks. A false return means the queue is closed.
func (q *unboundedQueue[M]) push(v M) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items.PushBack(v)
	q.mu.Unlock()

	q.signal()
	return true
}

func (q *unboundedQueue[M]) tryPop() (M, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		var zero M
		return zero, false
	}
	return q.items.PopFront(), true
}

// drain empties the queue and returns everything that was in it, in FIFO
// order.
func (q *unboundedQueue[M]) drain() []M {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]M, 0, q.items.Len())
	for q.items.Len() > 0 {
		out = append(out, q.items.PopFront())
	}
	return out
}

func (q *unboundedQueue[M]) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *unboundedQueue[M]) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

// recv blocks until an item is available, the queue is closed, or ctx is
// done. Once closed, every subsequent call returns ErrClosed immediately
// (idempotent).
func (q *unboundedQueue[M]) recv(ctx context.Context) (M, error) {
	for {
		if v, ok := q.tryPop(); ok {
			return v, nil
		}
		if q.isClosed() {
			var zero M
			return zero, ErrClosed
		}

		select {
		case <-q.notify:
			continue
		case <-ctx.Done():
			var zero M
			return zero, ctx.Err()
		}
	}
}

// onceCore is the single-use slot backing a one-shot port: a capacity-1
// channel that is sent to and closed exactly once.
type onceCore[M any] struct {
	mu   sync.Mutex
	ch   chan M
	done bool
}

func newOnceCore[M any]() *onceCore[M] {
	return &onceCore[M]{ch: make(chan M, 1)}
}

// send delivers v if the slot hasn't already been used or closed.
func (o *onceCore[M]) send(v M) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done {
		return false
	}
	o.done = true
	o.ch <- v
	close(o.ch)
	return true
}

// close marks the slot used without ever delivering a value, e.g. when its
// receiver is dropped before anything was sent.
func (o *onceCore[M]) close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done {
		return
	}
	o.done = true
	close(o.ch)
}

func (o *onceCore[M]) recv(ctx context.Context) (M, error) {
	select {
	case v, ok := <-o.ch:
		if !ok {
			var zero M
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		var zero M
		return zero, ctx.Err()
	}
}

// PortHandle is the user-facing write end of a port: freely cloneable for
// unbounded ports (every Go value of this interface is already a reference,
// since the concrete implementations close over shared state), synchronous,
// and non-blocking.
type PortHandle[M any] interface {
	// ID returns the port this handle addresses.
	ID() PortId

	// Send enqueues msg and reports whether it was accepted. False means
	// the sink side is gone (Closed).
	Send(msg M) bool
}

type unboundedHandle[M any] struct {
	id    PortId
	queue *unboundedQueue[M]
}

func (h *unboundedHandle[M]) ID() PortId    { return h.id }
func (h *unboundedHandle[M]) Send(msg M) bool { return h.queue.push(msg) }

type onceHandle[M any] struct {
	id   PortId
	core *onceCore[M]
}

func (h *onceHandle[M]) ID() PortId    { return h.id }
func (h *onceHandle[M]) Send(msg M) bool { return h.core.send(msg) }

// enqueueHandle is the write end of an enqueue port: sending invokes the
// bound function directly and synchronously rather than going through a
// queue (no receiver, just a sink function).
type enqueueHandle[M any] struct {
	id PortId
	fn func(M)
}

func (h *enqueueHandle[M]) ID() PortId { return h.id }

func (h *enqueueHandle[M]) Send(msg M) bool {
	h.fn(msg)
	return true
}

// accumCore is the shared state behind an accumulator port: a mutex-guarded
// fold over incoming updates, with each new state pushed onto the receive
// side's queue for the receiver to coalesce. The mutex is held only across
// the in-memory fold, never across I/O.
type accumCore[U, S any] struct {
	mu    sync.Mutex
	state S
	acc   Accumulator[U, S]
	out   *unboundedQueue[S]
	spec  ReducerSpec
}

func newAccumCore[U, S any](acc Accumulator[U, S], spec ReducerSpec) *accumCore[U, S] {
	return &accumCore[U, S]{
		state: acc.Init(),
		acc:   acc,
		out:   newUnboundedQueue[S](),
		spec:  spec,
	}
}

func (c *accumCore[U, S]) fold(update U) bool {
	c.mu.Lock()
	c.state = c.acc.Fold(c.state, update)
	next := c.state
	c.mu.Unlock()

	return c.out.push(next)
}

type accumHandle[U, S any] struct {
	id   PortId
	core *accumCore[U, S]
}

func (h *accumHandle[U, S]) ID() PortId      { return h.id }
func (h *accumHandle[U, S]) Send(update U) bool { return h.core.fold(update) }

// ReducerSpecOf returns the reducer descriptor attached to this accumulator
// port, so a remote peer forwarding through a split port knows how to
// accumulate updates in transit without holding the full Accumulator value.
func (h *accumHandle[U, S]) ReducerSpecOf() ReducerSpec { return h.core.spec }

// PortReceiver is the unique owner of a port's read end. Closing it removes
// the port from its owning Mailbox's dispatch table (wired by the Mailbox
// at construction time via the onClose callback) — Go has no destructors,
// so unlike the original's Drop impl, callers must call Close explicitly
// when they're done, typically in a defer right after opening the port.
type PortReceiver[M any] struct {
	id      PortId
	queue   *unboundedQueue[M]
	onClose func()
	closed  bool
	mu      sync.Mutex
}

// Recv blocks until a message arrives, the receiver is closed, or ctx is
// done.
func (r *PortReceiver[M]) Recv(ctx context.Context) (M, error) {
	return r.queue.recv(ctx)
}

// TryRecv returns immediately: a message if one was queued, ok=false with a
// nil error if the queue was merely empty, or ErrClosed if the sink side is
// gone.
func (r *PortReceiver[M]) TryRecv() (M, bool, error) {
	if v, ok := r.queue.tryPop(); ok {
		return v, true, nil
	}
	if r.queue.isClosed() {
		var zero M
		return zero, false, ErrClosed
	}
	var zero M
	return zero, false, nil
}

// Drain returns every message currently queued, in FIFO order, without
// blocking.
func (r *PortReceiver[M]) Drain() []M {
	return r.queue.drain()
}

// Close removes this port from its mailbox's dispatch table. Idempotent.
func (r *PortReceiver[M]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.queue.close()
	if r.onClose != nil {
		r.onClose()
	}
}

// AccumReceiver is the read end of an accumulator port. Unlike PortReceiver,
// every Recv coalesces: it drains whatever has queued since the last
// receive and returns only the most recently folded state — an
// at-least-one, latest-wins delivery guarantee.
type AccumReceiver[S any] struct {
	inner *PortReceiver[S]
}

// Recv blocks for at least one state update, then returns the latest one
// queued, discarding any intermediate states a slow receiver never observed.
func (r *AccumReceiver[S]) Recv(ctx context.Context) (S, error) {
	latest, err := r.inner.queue.recv(ctx)
	if err != nil {
		return latest, err
	}

	rest := r.inner.queue.drain()
	if len(rest) > 0 {
		return rest[len(rest)-1], nil
	}
	return latest, nil
}

// Close removes this port from its mailbox's dispatch table.
func (r *AccumReceiver[S]) Close() {
	r.inner.Close()
}

// OnceReceiver is the read end of a one-shot port.
type OnceReceiver[M any] struct {
	id      PortId
	core    *onceCore[M]
	onClose func()
	mu      sync.Mutex
	closed  bool
}

// Recv blocks until the single message arrives, the port is closed, or ctx
// is done.
func (r *OnceReceiver[M]) Recv(ctx context.Context) (M, error) {
	return r.core.recv(ctx)
}

// Close removes this port from its mailbox's dispatch table. Idempotent.
func (r *OnceReceiver[M]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.core.close()
	if r.onClose != nil {
		r.onClose()
	}
}
