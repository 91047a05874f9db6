package mailbox

import "fmt"

// DeliveryErrorKind tags the category of a DeliveryError.
type DeliveryErrorKind int

const (
	// Unroutable means no route exists: an unknown actor in a routing
	// table, a port not bound in a mailbox, or no default sender.
	Unroutable DeliveryErrorKind = iota

	// BrokenLink means an intermediate stage failed to enqueue the
	// envelope, e.g. a client buffer was closed or a weak router's table
	// could no longer be upgraded.
	BrokenLink

	// Mailbox means the local port accepted the envelope but dispatch
	// (deserialization, accumulator folding, a closed once-port) failed.
	Mailbox
)

// String implements fmt.Stringer.
func (k DeliveryErrorKind) String() string {
	switch k {
	case Unroutable:
		return "unroutable"
	case BrokenLink:
		return "broken_link"
	case Mailbox:
		return "mailbox"
	default:
		return "unknown"
	}
}

// DeliveryError is the tagged union describing why an envelope could not be
// delivered. It is carried inside a failed envelope back to its sender.
type DeliveryError struct {
	Kind   DeliveryErrorKind
	Reason string
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// NewUnroutable builds an Unroutable DeliveryError.
func NewUnroutable(reason string) *DeliveryError {
	return &DeliveryError{Kind: Unroutable, Reason: reason}
}

// NewBrokenLink builds a BrokenLink DeliveryError.
func NewBrokenLink(reason string) *DeliveryError {
	return &DeliveryError{Kind: BrokenLink, Reason: reason}
}

// NewMailboxError builds a Mailbox DeliveryError.
func NewMailboxError(reason string) *DeliveryError {
	return &DeliveryError{Kind: Mailbox, Reason: reason}
}

// MailboxSenderError is returned synchronously by operations that fail
// before an envelope is accepted into the sink pipeline (e.g.
// SerializeEnvelope). PortHandle.Send does not return it: a Send against a
// handle whose receiver has already gone away reports false instead. Once
// an envelope is inside the pipeline, failures travel exclusively through
// the undeliverable return path; MailboxSenderError is never attached to an
// envelope.
type MailboxSenderError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *MailboxSenderError) Error() string {
	return fmt.Sprintf("mailbox sender: %s: %s", e.Op, e.Reason)
}

// SerializedSenderError describes a failure to accept a raw serialized
// update into a type-erased sender, e.g. a deserialization failure on an
// unbounded typed port. The headers and data are preserved so the caller can
// reconstruct an envelope for the undeliverable return path.
type SerializedSenderError struct {
	Headers Attrs
	Data    any
	Err     error
}

// Error implements the error interface.
func (e *SerializedSenderError) Error() string {
	return fmt.Sprintf("serialized sender: %v", e.Err)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *SerializedSenderError) Unwrap() error {
	return e.Err
}

// ErrClosed indicates a once-port has already delivered its single message,
// or an unbounded port's receiver has gone away.
var ErrClosed = fmt.Errorf("port closed")

// ErrPortCollision indicates a bind attempt targeted a port_index that is
// already occupied. This is a programming error, not a runtime condition a
// caller should recover from: the mailbox panics rather than returning it,
// see BindTo.
var ErrPortCollision = fmt.Errorf("port index already bound")
