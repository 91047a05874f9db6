package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillhq/hyperbox/internal/mailbox"
	"github.com/quillhq/hyperbox/internal/mailbox/client"
	"github.com/quillhq/hyperbox/internal/mailbox/transport"
)

type intMsg int64

func (intMsg) TypeName() string { return "client_test.intMsg" }

type recordingHandle struct {
	envelopes []mailbox.MessageEnvelope
}

func (*recordingHandle) ID() mailbox.PortId { return mailbox.PortId{} }

func (h *recordingHandle) Send(msg mailbox.MessageEnvelope) bool {
	h.envelopes = append(h.envelopes, msg)
	return true
}

// TestClientServerRoundTrip drives an envelope through a MailboxClient,
// across a memory transport, into a MailboxServer that dispatches it to a
// local mailbox.
func TestClientServerRoundTrip(t *testing.T) {
	dialer := transport.NewMemoryDialer()
	addr := transport.Local(1)

	ctx := context.Background()

	rx, err := dialer.Serve(ctx, addr)
	require.NoError(t, err)

	tx, err := dialer.Dial(ctx, addr)
	require.NoError(t, err)

	actor := mailbox.NewActorId("test", 0, "server")
	mb := mailbox.NewMailbox(actor, mailbox.PanickingSender{})
	handle, receiver := mailbox.OpenPort[intMsg](mb)
	defer receiver.Close()

	server := client.NewMailboxServer(rx, mb, &recordingHandle{})
	defer server.Stop("test complete")

	mc := client.NewMailboxClient(tx)
	defer mc.Close()

	env, err := mailbox.SerializeEnvelope(
		mailbox.UnknownActor, handle.ID(), intMsg(99), mailbox.NewAttrs(),
	)
	require.NoError(t, err)

	mc.Post(env, &recordingHandle{})
	mc.Flush()

	recvCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := receiver.Recv(recvCtx)
	require.NoError(t, err)
	require.Equal(t, intMsg(99), got)
}

// TestClientEnqueueAfterCloseIsBrokenLink covers the "enqueue failures
// immediately mark the envelope BrokenLink" rule.
func TestClientEnqueueAfterCloseIsBrokenLink(t *testing.T) {
	dialer := transport.NewMemoryDialer()
	addr := transport.Local(2)

	ctx := context.Background()
	_, err := dialer.Serve(ctx, addr)
	require.NoError(t, err)

	tx, err := dialer.Dial(ctx, addr)
	require.NoError(t, err)

	mc := client.NewMailboxClient(tx)
	require.NoError(t, mc.Close())

	actor := mailbox.NewActorId("test", 0, "x")
	dest := mailbox.NewPortId(actor, mailbox.USER_PORT_OFFSET)
	env, err := mailbox.SerializeEnvelope(mailbox.UnknownActor, dest, intMsg(1), mailbox.NewAttrs())
	require.NoError(t, err)

	returned := &recordingHandle{}
	mc.Post(env, returned)

	require.Len(t, returned.envelopes, 1)
	require.Equal(t, mailbox.BrokenLink, returned.envelopes[0].Err.Kind)
}
