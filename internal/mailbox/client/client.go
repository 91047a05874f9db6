// Package client adapts a Mailbox-style Sender to and from a channel
// transport: MailboxClient sits in front of an outbound Tx, MailboxServer
// sits behind an inbound Rx. Both are external-boundary pieces, per spec.md
// §4.6 — everything upstream of them only ever sees a plain Sender.
package client

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"

	"github.com/quillhq/hyperbox/internal/mailbox"
	"github.com/quillhq/hyperbox/internal/mailbox/transport"
)

type clientJob struct {
	envelope     mailbox.MessageEnvelope
	returnHandle mailbox.PortHandle[mailbox.MessageEnvelope]
}

// MailboxClient owns an unbounded buffer of (envelope, return_handle) pairs
// and drains it onto a transport.Tx, one at a time. A second goroutine
// watches the Tx's status and logs when it goes Closed. Enqueue failures
// (the client itself closed) and delivery-ack failures are both reported by
// posting a BrokenLink envelope to the pair's own return handle — the
// client never returns an error from Post, matching the rest of this
// module's sink-style Sender contract.
type MailboxClient struct {
	tx transport.Tx

	mu     sync.Mutex
	buf    deque.Deque[clientJob]
	closed bool
	notify chan struct{}

	enqueued  atomic.Uint64
	processed atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMailboxClient wraps tx, starting its drain and status-watch goroutines
// immediately.
func NewMailboxClient(tx transport.Tx) *MailboxClient {
	c := &MailboxClient{
		tx:     tx,
		notify: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}

	go c.run()
	go c.watchStatus()

	return c
}

// Post implements mailbox.Sender.
func (c *MailboxClient) Post(
	envelope mailbox.MessageEnvelope, returnHandle mailbox.PortHandle[mailbox.MessageEnvelope],
) {

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		mailbox.Undeliverable(
			envelope,
			mailbox.NewBrokenLink("failed to enqueue in MailboxClient"),
			returnHandle,
		)
		return
	}

	c.buf.PushBack(clientJob{envelope: envelope, returnHandle: returnHandle})
	c.enqueued.Add(1)
	c.mu.Unlock()

	c.signal()
}

func (c *MailboxClient) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *MailboxClient) run() {
	for {
		c.mu.Lock()
		if c.buf.Len() == 0 {
			c.mu.Unlock()

			select {
			case <-c.notify:
				continue
			case <-c.stopCh:
				return
			}
		}
		job := c.buf.PopFront()
		c.mu.Unlock()

		ack := make(chan transport.Ack, 1)
		if err := c.tx.TryPost(job.envelope, ack); err != nil {
			mailbox.Undeliverable(job.envelope, mailbox.NewBrokenLink(err.Error()), job.returnHandle)
			c.processed.Add(1)
			continue
		}

		// TryPost only fires ack on a later failure, never on success
		// (transport.Tx.TryPost's own contract). The job is done as far
		// as Flush is concerned the moment TryPost accepts it; awaitAck
		// keeps watching in the background purely to surface a late
		// failure signal, without gating processed/Flush on an ack that
		// may never arrive.
		c.processed.Add(1)
		go c.awaitAck(job, ack)
	}
}

func (c *MailboxClient) awaitAck(job clientJob, ack chan transport.Ack) {
	select {
	case a, ok := <-ack:
		if ok && a.Err != nil {
			mailbox.Undeliverable(job.envelope, mailbox.NewBrokenLink(a.Err.Error()), job.returnHandle)
		}

	case <-c.stopCh:
	}
}

func (c *MailboxClient) watchStatus() {
	for {
		select {
		case status, ok := <-c.tx.Status():
			if !ok {
				return
			}
			if status == transport.Closed {
				log.WarnS(noCtx, "mailbox client transport closed")
			}

		case <-c.stopCh:
			return
		}
	}
}

// Flush blocks until every envelope enqueued so far has been handed to the
// transport (or, on an immediate TryPost failure, returned to its sender).
// It does not wait for a late ack: a successful TryPost has no further
// failure signal to wait for in the common case, and any ack that does
// arrive later is still honored by awaitAck in the background. It exists
// for tests; production code has no reason to wait on it.
func (c *MailboxClient) Flush() {
	target := c.enqueued.Load()
	for c.processed.Load() < target {
		time.Sleep(time.Millisecond)
	}
}

// Close stops the client's background goroutines and closes its
// underlying transport.
func (c *MailboxClient) Close() error {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.stopCh)
	})

	return c.tx.Close()
}
