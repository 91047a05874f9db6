package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/quillhq/hyperbox/internal/mailbox"
)

// MemoryDialer is an in-process reference Dialer: Serve registers a
// listener at an address, and Dial connects to whatever is currently
// listening there. It exists for tests and single-process integration,
// where a real socket or simulated-network transport would be overkill.
type MemoryDialer struct {
	mu     sync.Mutex
	served map[ChannelAddr]*memoryRx
}

// NewMemoryDialer returns a ready-to-use MemoryDialer.
func NewMemoryDialer() *MemoryDialer {
	return &MemoryDialer{served: make(map[ChannelAddr]*memoryRx)}
}

// Serve registers addr as listening, returning the Rx a caller should drain.
// Serving the same address twice is an error.
func (d *MemoryDialer) Serve(_ context.Context, addr ChannelAddr) (Rx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.served[addr]; exists {
		return nil, fmt.Errorf("transport: %s already served", addr)
	}

	rx := &memoryRx{
		ch:   make(chan mailbox.MessageEnvelope, 256),
		done: make(chan struct{}),
	}
	d.served[addr] = rx
	return rx, nil
}

// Dial connects to whatever is currently served at addr. Dialing an address
// with no listener is an error.
func (d *MemoryDialer) Dial(_ context.Context, addr ChannelAddr) (Tx, error) {
	d.mu.Lock()
	rx, ok := d.served[addr]
	d.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("transport: no listener at %s", addr)
	}

	return &memoryTx{rx: rx, status: make(chan Status, 1)}, nil
}

type memoryRx struct {
	ch        chan mailbox.MessageEnvelope
	done      chan struct{}
	closeOnce sync.Once
}

// Recv implements Rx.
func (r *memoryRx) Recv(ctx context.Context) (mailbox.MessageEnvelope, error) {
	select {
	case env, ok := <-r.ch:
		if !ok {
			return mailbox.MessageEnvelope{}, ErrClosed
		}
		return env, nil

	case <-r.done:
		return mailbox.MessageEnvelope{}, ErrClosed

	case <-ctx.Done():
		return mailbox.MessageEnvelope{}, ctx.Err()
	}
}

// Close implements Rx.
func (r *memoryRx) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	return nil
}

type memoryTx struct {
	rx        *memoryRx
	status    chan Status
	closeOnce sync.Once
}

// TryPost implements Tx. The memory transport's channel is large but still
// bounded; a full channel is reported as a synchronous failure rather than
// blocking, preserving the non-blocking post contract.
func (t *memoryTx) TryPost(envelope mailbox.MessageEnvelope, ack chan<- Ack) error {
	select {
	case t.rx.ch <- envelope:
		return nil

	case <-t.rx.done:
		err := ErrClosed
		if ack != nil {
			ack <- Ack{Err: err}
		}
		return err

	default:
		err := fmt.Errorf("transport: send buffer full")
		if ack != nil {
			ack <- Ack{Err: err}
		}
		return err
	}
}

// Status implements Tx.
func (t *memoryTx) Status() <-chan Status {
	return t.status
}

// Close implements Tx.
func (t *memoryTx) Close() error {
	t.closeOnce.Do(func() {
		t.status <- Closed
		close(t.status)
	})
	return nil
}
