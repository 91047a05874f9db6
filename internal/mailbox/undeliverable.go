package mailbox

// undeliverableMessage wraps a failed envelope for delivery on an actor's
// bound undeliverable return port — the named type the original specifies
// as Undeliverable<MessageEnvelope>. The bound return port in this package
// is typed directly as PortHandle[MessageEnvelope] (see
// Mailbox.BindUndeliverable/BoundReturnHandle); this wrapper exists only for
// this package's own tests that want a value distinguishable, by its own
// type, from an envelope that is merely in flight rather than a failure
// notification. It is not part of the public API.
type undeliverableMessage struct {
	Envelope MessageEnvelope
}

// TypeName implements wire.Named.
func (undeliverableMessage) TypeName() string {
	return "hyperbox.undeliverableMessage"
}

// newUndeliverableMessage wraps envelope, which must already carry a
// non-nil Err (see MessageEnvelope.TrySetError). Tests use this to build a
// failure notification directly, without driving it through an actual
// failed Post.
func newUndeliverableMessage(envelope MessageEnvelope) undeliverableMessage {
	return undeliverableMessage{Envelope: envelope}
}
