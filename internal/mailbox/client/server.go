package client

import (
	"context"
	"errors"
	"sync"

	"github.com/quillhq/hyperbox/internal/mailbox"
	"github.com/quillhq/hyperbox/internal/mailbox/transport"
)

// MailboxServer binds a transport.Rx to a local dispatch Sender. It runs a
// receive loop on its own goroutine, with a helper goroutine that cancels
// the pending receive when Stop is called; every received envelope is posted to
// dispatch with returnHandle as its failure path. On a clean transport
// close the server exits without error; on any other receive error it
// exits reporting that error on Done.
type MailboxServer struct {
	rx           transport.Rx
	dispatch     mailbox.Sender
	returnHandle mailbox.PortHandle[mailbox.MessageEnvelope]

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan error
}

// NewMailboxServer starts serving rx immediately, posting every received
// envelope to dispatch.
func NewMailboxServer(
	rx transport.Rx, dispatch mailbox.Sender,
	returnHandle mailbox.PortHandle[mailbox.MessageEnvelope],
) *MailboxServer {

	s := &MailboxServer{
		rx:           rx,
		dispatch:     dispatch,
		returnHandle: returnHandle,
		stopCh:       make(chan struct{}),
		done:         make(chan error, 1),
	}

	go s.run()

	return s
}

func (s *MailboxServer) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		envelope, err := s.rx.Recv(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || errors.Is(err, context.Canceled) {
				s.done <- nil
				return
			}
			s.done <- err
			return
		}

		s.dispatch.Post(envelope, s.returnHandle)
	}
}

// Stop requests the server's receive loop to exit. It may be called at
// most once; later calls are no-ops.
func (s *MailboxServer) Stop(reason string) {
	s.stopOnce.Do(func() {
		log.InfoS(noCtx, "mailbox server stopping", "reason", reason)
		close(s.stopCh)
	})
}

// Done returns a channel that receives the server's terminal error (nil on
// a clean stop or transport close) exactly once, then is never written to
// again.
func (s *MailboxServer) Done() <-chan error {
	return s.done
}
