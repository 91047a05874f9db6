package mailbox

import (
	"sync"
	"sync/atomic"

	"github.com/quillhq/hyperbox/internal/mailbox/wire"
)

// Mailbox is the per-actor registry of ports and the local end of the
// dispatch path: a post addressed to this mailbox's own actor is delivered
// directly to a bound port; anything else is handed to forwarder. Ports are
// created lazily — opening one only means a binding is installed in the
// table, never that work was scheduled — and are removed either when their
// receiver closes or a one-shot port has delivered its single message.
type Mailbox struct {
	actor ActorId

	mu    sync.RWMutex
	ports map[uint64]portBinding

	// returnHandle is the actor's bound Undeliverable<MessageEnvelope> port,
	// set once via BindUndeliverable. nil until bound.
	returnHandle PortHandle[MessageEnvelope]

	nextIndex atomic.Uint64

	forwarder Sender

	warnOnce sync.Once
}

// NewMailbox constructs a Mailbox for actor, forwarding any envelope not
// addressed to actor to forwarder. Pass PanickingSender{} to build a
// deliberately detached mailbox.
func NewMailbox(actor ActorId, forwarder Sender) *Mailbox {
	return &Mailbox{
		actor:     actor,
		ports:     make(map[uint64]portBinding),
		forwarder: forwarder,
	}
}

// ActorID returns the actor this mailbox belongs to.
func (m *Mailbox) ActorID() ActorId {
	return m.actor
}

// allocIndex returns the next user port index, strictly greater than every
// index previously returned by this mailbox (invariant 1: port uniqueness
// and monotonicity).
func (m *Mailbox) allocIndex() uint64 {
	return USER_PORT_OFFSET + m.nextIndex.Add(1) - 1
}

func (m *Mailbox) insert(index uint64, b portBinding) {
	m.mu.Lock()
	m.ports[index] = b
	m.mu.Unlock()
}

// bindExclusive installs b at index, panicking if index is already
// occupied. Used by the BindTo family, which targets a caller-chosen index
// rather than an allocated one.
func (m *Mailbox) bindExclusive(index uint64, b portBinding) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, occupied := m.ports[index]; occupied {
		panic(ErrPortCollision)
	}
	m.ports[index] = b
}

func (m *Mailbox) remove(index uint64) {
	m.mu.Lock()
	delete(m.ports, index)
	m.mu.Unlock()
}

// lookup returns the binding installed at index, if any.
func (m *Mailbox) lookup(index uint64) (portBinding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.ports[index]
	return b, ok
}

// OpenPort allocates a fresh unbounded typed port on m. This is a
// package-level function, not a method, because Go methods cannot carry
// their own type parameters.
func OpenPort[M wire.Named](m *Mailbox) (PortHandle[M], *PortReceiver[M]) {
	index := m.allocIndex()
	id := NewPortId(m.actor, index)
	queue := newUnboundedQueue[M]()

	m.insert(index, &unboundedPortBinding[M]{queue: queue})

	handle := &unboundedHandle[M]{id: id, queue: queue}
	receiver := &PortReceiver[M]{
		id:      id,
		queue:   queue,
		onClose: func() { m.remove(index) },
	}
	return handle, receiver
}

// OpenOncePort allocates a fresh single-use port on m.
func OpenOncePort[M wire.Named](m *Mailbox) (PortHandle[M], *OnceReceiver[M]) {
	index := m.allocIndex()
	id := NewPortId(m.actor, index)
	core := newOnceCore[M]()

	m.insert(index, &oncePortBinding[M]{core: core})

	handle := &onceHandle[M]{id: id, core: core}
	receiver := &OnceReceiver[M]{
		id:      id,
		core:    core,
		onClose: func() { m.remove(index) },
	}
	return handle, receiver
}

// OpenAccumPort allocates a port that folds incoming updates of type U into
// a derived state S via acc, emitting the new state on every fold. spec is
// attached to the returned handle so that a remote peer forwarding through
// a split port knows which reducer to apply in transit without holding acc
// itself.
func OpenAccumPort[U wire.Named, S any](
	m *Mailbox, acc Accumulator[U, S], spec ReducerSpec,
) (PortHandle[U], *AccumReceiver[S]) {

	index := m.allocIndex()
	id := NewPortId(m.actor, index)
	core := newAccumCore(acc, spec)

	m.insert(index, &accumPortBinding[U, S]{core: core})

	handle := &accumHandle[U, S]{id: id, core: core}
	inner := &PortReceiver[S]{
		id:      id,
		queue:   core.out,
		onClose: func() { m.remove(index) },
	}
	return handle, &AccumReceiver[S]{inner: inner}
}

// OpenEnqueuePort binds fn as the sink for a fresh port: every message
// delivered to the port invokes fn directly, with no receiver to drain and
// nothing buffered. The caller is responsible for fn's own concurrency
// safety, since it runs on whatever goroutine called Post.
func OpenEnqueuePort[M wire.Named](m *Mailbox, fn func(M)) PortHandle[M] {
	index := m.allocIndex()
	id := NewPortId(m.actor, index)

	m.insert(index, &enqueuePortBinding[M]{fn: fn})

	return &enqueueHandle[M]{id: id, fn: fn}
}

// BindTo installs a fresh unbounded typed port at a caller-chosen index
// rather than an allocated one — used for framework-reserved ports such as
// the Signal port. It panics if index is already bound: a bind_to
// collision is a programming error.
func BindTo[M wire.Named](m *Mailbox, index uint64) (PortHandle[M], *PortReceiver[M]) {
	id := NewPortId(m.actor, index)
	queue := newUnboundedQueue[M]()

	m.bindExclusive(index, &unboundedPortBinding[M]{queue: queue})

	handle := &unboundedHandle[M]{id: id, queue: queue}
	receiver := &PortReceiver[M]{
		id:      id,
		queue:   queue,
		onClose: func() { m.remove(index) },
	}
	return handle, receiver
}

// BindOnce installs a fresh single-use port at a caller-chosen index. It
// panics on collision, matching BindTo.
func BindOnce[M wire.Named](m *Mailbox, index uint64) (PortHandle[M], *OnceReceiver[M]) {
	id := NewPortId(m.actor, index)
	core := newOnceCore[M]()

	m.bindExclusive(index, &oncePortBinding[M]{core: core})

	handle := &onceHandle[M]{id: id, core: core}
	receiver := &OnceReceiver[M]{
		id:      id,
		core:    core,
		onClose: func() { m.remove(index) },
	}
	return handle, receiver
}

// BindUntyped installs fn at index as a raw Serialized sink, bypassing
// deserialization entirely. This is the primitive split ports and
// reducer-bearing forwarders use: they only need to move bytes, never
// interpret them.
func BindUntyped(
	m *Mailbox, index uint64, fn func(headers Attrs, data wire.Serialized) error,
) {
	m.bindExclusive(index, &untypedPortBinding{fn: fn})
}

// Unbind removes whatever binding occupies index, if any. This is not part
// of the core open/bind contract above, but is needed by BindUntyped
// callers (notably split-port teardown) that must be able to retract a
// binding installed at a caller-chosen index.
func (m *Mailbox) Unbind(index uint64) {
	m.remove(index)
}

// BindUndeliverable installs handle as this mailbox's bound return path for
// delivery failures. An actor should call this once, early in its own
// construction, typically binding a receiver at UndeliverablePortIndex and
// passing the matching handle here.
func (m *Mailbox) BindUndeliverable(handle PortHandle[MessageEnvelope]) {
	m.mu.Lock()
	m.returnHandle = handle
	m.mu.Unlock()
}

// BoundReturnHandle returns this actor's bound undeliverable-message return
// path. If the actor never bound one, the mailbox warns once and falls
// back to a process-wide sink that only logs the failure.
func (m *Mailbox) BoundReturnHandle() PortHandle[MessageEnvelope] {
	m.mu.RLock()
	h := m.returnHandle
	m.mu.RUnlock()

	if h != nil {
		return h
	}

	m.warnOnce.Do(func() {
		log.WarnS(noCtx, "mailbox has no bound undeliverable return handle, "+
			"falling back to process-wide sink", "actor", m.actor.String())
	})

	return fallbackUndeliverableHandle{actor: m.actor}
}

// Post dispatches envelope. If its destination actor isn't m's own, the
// envelope is handed to m's forwarder unchanged. Otherwise m looks up the
// destination port: an absent port is returned-to-sender as Unroutable;
// a present one is given the payload, and any failure it reports is
// returned-to-sender as a Mailbox error. Post never blocks and never
// panics, except via bindExclusive's collision panic raised earlier at
// setup time, or a PanickingSender forwarder reached by a misrouted
// envelope.
func (m *Mailbox) Post(envelope MessageEnvelope, returnHandle PortHandle[MessageEnvelope]) {
	if envelope.Dest.Actor.Compare(m.actor) != 0 {
		m.forwarder.Post(envelope, returnHandle)
		return
	}

	binding, ok := m.lookup(envelope.Dest.Index)
	if !ok {
		Undeliverable(
			envelope,
			NewUnroutable("port not bound: "+envelope.Dest.String()),
			returnHandle,
		)
		return
	}

	stillValid, sErr := binding.sendSerialized(envelope.Headers, envelope.Data)
	if !stillValid {
		m.remove(envelope.Dest.Index)
	}

	if sErr != nil {
		failed := envelope
		failed.Headers = sErr.Headers
		Undeliverable(failed, NewMailboxError(sErr.Error()), returnHandle)
	}
}

// fallbackUndeliverableHandle is the process-wide sink BoundReturnHandle
// substitutes when an actor never bound its own return path. It never
// actually delivers anywhere; it only logs, so that an unbound actor's
// failures are visible instead of silently dropped.
type fallbackUndeliverableHandle struct {
	actor ActorId
}

// ID implements PortHandle. The zero PortId is a sentinel: this handle
// addresses nothing real.
func (fallbackUndeliverableHandle) ID() PortId {
	return PortId{}
}

// Send implements PortHandle.
func (h fallbackUndeliverableHandle) Send(msg MessageEnvelope) bool {
	reason := "<nil>"
	if msg.Err != nil {
		reason = msg.Err.Error()
	}

	log.ErrorS(noCtx, "undeliverable envelope dropped: no bound return handle",
		"actor", h.actor.String(),
		"sender", msg.Sender.String(),
		"dest", msg.Dest.String(),
		"error", reason)

	return true
}
