package mailbox

import "github.com/quillhq/hyperbox/internal/mailbox/wire"

// Reserved, framework-assigned port indices. Both fall below
// USER_PORT_OFFSET.
const (
	// SignalPortIndex is the port a mailbox's owner listens on for
	// lifecycle signals (e.g. a supervisor asking an actor to stop).
	SignalPortIndex uint64 = 0

	// UndeliverablePortIndex is the default port an actor binds to
	// receive Undeliverable[MessageEnvelope] notifications, see
	// Mailbox.BoundReturnHandle.
	UndeliverablePortIndex uint64 = 1
)

// UnknownActor is the sentinel sender used by NewUnknownEnvelope when no
// real sender identity is available (e.g. an envelope synthesized by a
// return path that never had its own address).
var UnknownActor = ActorId{World: "unknown", Name: "unknown"}

// MessageEnvelope is the transport unit that crosses local and remote
// boundaries: a sender, a destination port, an opaque serialized payload,
// optional headers, and an optional delivery error. An envelope is
// immutable through successful delivery; the only mutation the spec allows
// is the first-write-wins error stamp applied by TrySetError.
type MessageEnvelope struct {
	Sender  ActorId
	Dest    PortId
	Data    wire.Serialized
	Err     *DeliveryError
	Headers Attrs
}

// TypeName implements wire.Named, letting a MessageEnvelope itself be
// carried as the message type of an unbounded or once port — the shape the
// bound undeliverable return port and the mailbox client/server's transport
// boundary both need.
func (MessageEnvelope) TypeName() string {
	return "hyperbox.MessageEnvelope"
}

// NewEnvelope builds an envelope with an explicit sender.
func NewEnvelope(sender ActorId, dest PortId, data wire.Serialized, headers Attrs) MessageEnvelope {
	return MessageEnvelope{
		Sender:  sender,
		Dest:    dest,
		Data:    data,
		Headers: headers,
	}
}

// NewUnknownEnvelope builds an envelope whose sender is the UnknownActor
// sentinel, for callers that have no real sender identity to attach.
func NewUnknownEnvelope(dest PortId, data wire.Serialized, headers Attrs) MessageEnvelope {
	return NewEnvelope(UnknownActor, dest, data, headers)
}

// SerializeEnvelope combines payload serialization and envelope
// construction: the common case for a sender that has a concrete, typed
// message and wants an envelope ready to post.
func SerializeEnvelope[T wire.Named](
	sender ActorId, dest PortId, v T, headers Attrs,
) (MessageEnvelope, error) {

	data, err := wire.Serialize(v)
	if err != nil {
		return MessageEnvelope{}, &MailboxSenderError{
			Op:     "serialize_envelope",
			Reason: err.Error(),
		}
	}

	return NewEnvelope(sender, dest, data, headers), nil
}

// Deserialized decodes an envelope's payload into T. This is the receive
// side of SerializeEnvelope, used by a typed port after local dispatch has
// delivered the envelope to the right queue.
func Deserialized[T wire.Named](e MessageEnvelope) (T, error) {
	return wire.Deserialize[T](e.Data)
}

// IsSignal reports whether this envelope targets the reserved signal port.
func (e MessageEnvelope) IsSignal() bool {
	return e.Dest.Index == SignalPortIndex
}

// TrySetError stamps err onto the envelope if and only if no error has been
// stamped yet. The error closest to the sender wins: once dispatch fails at
// some layer, no deeper layer's failure reason should overwrite it.
func (e MessageEnvelope) TrySetError(err *DeliveryError) MessageEnvelope {
	if e.Err != nil {
		return e
	}
	e.Err = err
	return e
}

// Undeliverable stamps err onto e (first error wins) and posts the result to
// returnHandle. This is the sole mechanism by which a failed dispatch is
// reported back to a sender.
func Undeliverable(
	e MessageEnvelope, err *DeliveryError, returnHandle PortHandle[MessageEnvelope],
) {

	failed := e.TrySetError(err)

	log.DebugS(noCtx, "Envelope undeliverable",
		"sender", failed.Sender.String(),
		"dest", failed.Dest.String(),
		"error_kind", failed.Err.Kind.String())

	returnHandle.Send(failed)
}
