package mailbox

import "github.com/prometheus/client_golang/prometheus"

// Sender is the uniform contract every routing layer implements: post an
// envelope, with all failures surfacing through returnHandle rather than a
// return value. A Mailbox, a muxer, a prefix router, and a dial router are
// all Senders; this is what lets a router store heterogeneous children
// without leaking type parameters upward.
type Sender interface {
	Post(envelope MessageEnvelope, returnHandle PortHandle[MessageEnvelope])
}

// SenderFunc adapts a plain function to the Sender interface.
type SenderFunc func(envelope MessageEnvelope, returnHandle PortHandle[MessageEnvelope])

// Post implements Sender.
func (f SenderFunc) Post(envelope MessageEnvelope, returnHandle PortHandle[MessageEnvelope]) {
	f(envelope, returnHandle)
}

// PanickingSender is the detachment sentinel a Mailbox is given as its
// forwarder when it has no real upstream. Posting anything that isn't
// addressed to the mailbox's own actor panics, which is the point: a
// detached mailbox should never see a forwarded envelope in a correctly
// wired system.
type PanickingSender struct{}

// Post implements Sender.
func (PanickingSender) Post(envelope MessageEnvelope, _ PortHandle[MessageEnvelope]) {
	panic("mailbox: post on detached mailbox with no forwarder: " + envelope.Dest.String())
}

// UnroutableSender returns every envelope it receives to its sender as
// Unroutable. It is the typical terminal `default` of a dial router's
// address book.
type UnroutableSender struct {
	Reason string
}

// Post implements Sender.
func (s UnroutableSender) Post(envelope MessageEnvelope, returnHandle PortHandle[MessageEnvelope]) {
	reason := s.Reason
	if reason == "" {
		reason = "no route to destination"
	}
	Undeliverable(envelope, NewUnroutable(reason), returnHandle)
}

var postsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "hyperbox_mailbox_sender_posts_total",
		Help: "Envelopes posted through a BoxedSender, labeled by the " +
			"boxed sender's type tag.",
	},
	[]string{"sender_type"},
)

func init() {
	prometheus.MustRegister(postsTotal)
}

// BoxedSender type-erases a concrete Sender behind a stable value, tagging
// it with a type name so callers can later attempt a typed recovery by
// name-string equality rather than a reflection-based type switch. Every
// post through a BoxedSender is also counted, giving routers a uniform
// telemetry point regardless of what they wrap.
type BoxedSender struct {
	typeName string
	inner    Sender
}

// NewBoxedSender wraps inner, tagging it with typeName for later downcast
// attempts via DowncastSender.
func NewBoxedSender(typeName string, inner Sender) *BoxedSender {
	return &BoxedSender{typeName: typeName, inner: inner}
}

// Post implements Sender.
func (b *BoxedSender) Post(envelope MessageEnvelope, returnHandle PortHandle[MessageEnvelope]) {
	postsTotal.WithLabelValues(b.typeName).Inc()
	b.inner.Post(envelope, returnHandle)
}

// TypeName returns the tag this sender was boxed under.
func (b *BoxedSender) TypeName() string {
	return b.typeName
}

// DowncastSender attempts to recover a T from a boxed sender whose type tag
// matches typeName. Both the tag and a concrete Go type assertion must
// agree; the tag alone is caller-supplied metadata and not proof of the
// underlying type.
func DowncastSender[T Sender](b *BoxedSender, typeName string) (T, bool) {
	var zero T
	if b == nil || b.typeName != typeName {
		return zero, false
	}
	typed, ok := b.inner.(T)
	return typed, ok
}
