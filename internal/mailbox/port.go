package mailbox

import "github.com/quillhq/hyperbox/internal/mailbox/wire"

// portBinding is the type-erased contract every port installed into a
// Mailbox's ports map satisfies. It bridges a statically typed endpoint
// (an unbounded queue, a once-slot, a plain function) with the opaque
// Serialized payload that arrives over a post. There are five concrete
// implementations: unboundedPortBinding, oncePortBinding,
// untypedPortBinding, enqueuePortBinding (a typed variant of the untyped
// one), and accumPortBinding.
type portBinding interface {
	// sendSerialized delivers data to the underlying endpoint. stillValid
	// reports whether the Mailbox should keep this binding in its ports
	// map; false means the caller should remove the entry (the binding
	// has served its single purpose, or its sink has gone away).
	sendSerialized(headers Attrs, data wire.Serialized) (stillValid bool, sErr *SerializedSenderError)
}

// unboundedPortBinding deserializes incoming Serialized payloads into M and
// enqueues them on an unbounded FIFO queue. It always reports stillValid
// true on a successful enqueue; a deserialization failure also leaves the
// port bound (the payload was bad, not the port), but a push against an
// already-closed queue (the receiver went away in a race with an in-flight
// post) reports stillValid false so the Mailbox evicts the stale entry.
type unboundedPortBinding[M wire.Named] struct {
	queue *unboundedQueue[M]
}

func (b *unboundedPortBinding[M]) sendSerialized(
	headers Attrs, data wire.Serialized,
) (bool, *SerializedSenderError) {

	msg, err := wire.Deserialize[M](data)
	if err != nil {
		return true, &SerializedSenderError{Headers: headers, Data: data, Err: err}
	}

	if ok := b.queue.push(msg); !ok {
		return false, &SerializedSenderError{Headers: headers, Data: data, Err: ErrClosed}
	}

	return true, nil
}

// oncePortBinding delivers at most one message to a single-use slot. A
// successful delivery reports stillValid false so the Mailbox removes the
// port entry immediately — the slot has nothing left to offer. A repeat
// delivery (the slot was already consumed or explicitly closed) reports
// Closed.
type oncePortBinding[M wire.Named] struct {
	core *onceCore[M]
}

func (b *oncePortBinding[M]) sendSerialized(
	headers Attrs, data wire.Serialized,
) (bool, *SerializedSenderError) {

	msg, err := wire.Deserialize[M](data)
	if err != nil {
		return true, &SerializedSenderError{Headers: headers, Data: data, Err: err}
	}

	if ok := b.core.send(msg); !ok {
		return false, &SerializedSenderError{Headers: headers, Data: data, Err: ErrClosed}
	}

	return false, nil
}

// untypedPortBinding invokes a stored function directly on the raw
// Serialized payload, with no deserialization step. Used by split ports
// and reducer-bearing forwarders, which only need to move bytes, not
// interpret them.
type untypedPortBinding struct {
	fn func(headers Attrs, data wire.Serialized) error
}

func (b *untypedPortBinding) sendSerialized(
	headers Attrs, data wire.Serialized,
) (bool, *SerializedSenderError) {

	if err := b.fn(headers, data); err != nil {
		return true, &SerializedSenderError{Headers: headers, Data: data, Err: err}
	}

	return true, nil
}

// enqueuePortBinding deserializes into M and hands the result to a stored
// user function. It never closes on its own; the binding exists until the
// Mailbox owner explicitly unbinds it.
type enqueuePortBinding[M wire.Named] struct {
	fn func(M)
}

func (b *enqueuePortBinding[M]) sendSerialized(
	headers Attrs, data wire.Serialized,
) (bool, *SerializedSenderError) {

	msg, err := wire.Deserialize[M](data)
	if err != nil {
		return true, &SerializedSenderError{Headers: headers, Data: data, Err: err}
	}

	b.fn(msg)
	return true, nil
}

// accumPortBinding deserializes incoming updates into U and folds them into
// an accumCore's running state under lock, emitting the new state to
// whatever receiver is reading the core's output queue. stillValid follows
// the output queue: once the receiver has gone away, the binding reports
// itself done so the Mailbox evicts it, the same as an unboundedPortBinding
// whose queue has closed.
type accumPortBinding[U wire.Named, S any] struct {
	core *accumCore[U, S]
}

func (b *accumPortBinding[U, S]) sendSerialized(
	headers Attrs, data wire.Serialized,
) (bool, *SerializedSenderError) {

	update, err := wire.Deserialize[U](data)
	if err != nil {
		return true, &SerializedSenderError{Headers: headers, Data: data, Err: err}
	}

	if ok := b.core.fold(update); !ok {
		return false, &SerializedSenderError{Headers: headers, Data: data, Err: ErrClosed}
	}

	return true, nil
}
