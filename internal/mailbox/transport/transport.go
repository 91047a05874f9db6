// Package transport defines the channel-transport contract the mailbox
// client and dial router build on. It stands in for real wire-level
// transports (unix sockets, TCP, simulated links): a dial/serve pair plus a
// status watch, with every implementation treated by the rest of this
// module as an external collaborator behind this interface.
package transport

import (
	"context"
	"fmt"

	"github.com/quillhq/hyperbox/internal/mailbox"
)

// ChannelAddr is an opaque address: a transport scheme and a
// scheme-specific body. Ordering and equality are purely structural, which
// is what lets it serve as both a map key (the dial router's sender cache)
// and a btree key component (the dial router's address book).
type ChannelAddr struct {
	Scheme string
	Body   string
}

// String renders the address as "scheme!body".
func (a ChannelAddr) String() string {
	return fmt.Sprintf("%s!%s", a.Scheme, a.Body)
}

// Unix builds a unix-domain-socket-shaped address, e.g. "unix!@name".
func Unix(name string) ChannelAddr {
	return ChannelAddr{Scheme: "unix", Body: "@" + name}
}

// Local builds an in-process address identified by an integer, e.g.
// "local!3".
func Local(n uint64) ChannelAddr {
	return ChannelAddr{Scheme: "local", Body: fmt.Sprintf("%d", n)}
}

// Sim builds a simulated-transport address with an arbitrary body, e.g.
// "sim!...".
func Sim(body string) ChannelAddr {
	return ChannelAddr{Scheme: "sim", Body: body}
}

// Status is a Tx's connection health, watchable via Tx.Status.
type Status int

const (
	// Active means the transport is believed usable.
	Active Status = iota

	// Closed means the transport has permanently stopped; no further
	// sends will succeed.
	Closed
)

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == Closed {
		return "closed"
	}
	return "active"
}

// Ack is delivered exactly once per TryPost call whose envelope could not
// be sent. A successful send is not guaranteed to produce an Ack at all;
// only failures are guaranteed to surface here.
type Ack struct {
	Err error
}

// Tx is the sending half of a channel transport.
type Tx interface {
	// TryPost enqueues envelope for transmission without blocking. If ack
	// is non-nil, exactly one Ack is sent to it when (and only when) the
	// envelope could not be delivered.
	TryPost(envelope mailbox.MessageEnvelope, ack chan<- Ack) error

	// Status returns a channel of status transitions, closed when the Tx
	// itself is closed for good.
	Status() <-chan Status

	// Close releases the Tx's resources.
	Close() error
}

// Rx is the receiving half of a channel transport.
type Rx interface {
	// Recv blocks until an envelope arrives, the transport closes
	// (returning ErrClosed), or ctx is done.
	Recv(ctx context.Context) (mailbox.MessageEnvelope, error)

	// Close releases the Rx's resources.
	Close() error
}

// Dialer opens outbound (Dial) and inbound (Serve) ends of a channel
// transport at a given address.
type Dialer interface {
	Dial(ctx context.Context, addr ChannelAddr) (Tx, error)
	Serve(ctx context.Context, addr ChannelAddr) (Rx, error)
}

// ErrClosed is returned by Rx.Recv once its transport has permanently
// closed.
var ErrClosed = fmt.Errorf("transport closed")
