package mailbox_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/quillhq/hyperbox/internal/mailbox"
	"github.com/quillhq/hyperbox/internal/mailbox/wire"
)

type intMsg int64

func (intMsg) TypeName() string { return "mailbox_test.intMsg" }

func testActor(name string) mailbox.ActorId {
	return mailbox.NewActorId("test", 0, name)
}

func mustEnvelope(
	t *testing.T, sender mailbox.ActorId, dest mailbox.PortId, v intMsg,
) mailbox.MessageEnvelope {

	t.Helper()

	env, err := mailbox.SerializeEnvelope(sender, dest, v, mailbox.NewAttrs())
	require.NoError(t, err)
	return env
}

// TestPortUniquenessMonotonic covers invariant 1: distinct open_*_port
// calls yield distinct, strictly monotone indices at or above
// USER_PORT_OFFSET.
func TestPortUniquenessMonotonic(t *testing.T) {
	mb := mailbox.NewMailbox(testActor("test"), mailbox.PanickingSender{})

	var indices []uint64
	for i := 0; i < 10; i++ {
		h, r := mailbox.OpenPort[intMsg](mb)
		indices = append(indices, h.ID().Index)
		defer r.Close()
	}

	for i, idx := range indices {
		require.GreaterOrEqual(t, idx, mailbox.USER_PORT_OFFSET)
		if i > 0 {
			require.Greater(t, idx, indices[i-1])
		}
	}
}

// TestLocalDeliveryE1 covers invariant 3 and scenario E1: a local echo
// through an unbounded typed port.
func TestLocalDeliveryE1(t *testing.T) {
	actor := mailbox.NewActorId("test", 0, "test")
	mb := mailbox.NewMailbox(actor, mailbox.PanickingSender{})

	handle, receiver := mailbox.OpenPort[intMsg](mb)
	defer receiver.Close()

	env := mustEnvelope(t, mailbox.UnknownActor, handle.ID(), intMsg(123))

	mb.Post(env, discardReturnHandle{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := receiver.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, intMsg(123), got)
}

// TestFIFOPerPort covers invariant 4: consecutive sends on a single handle
// are received in the same order.
func TestFIFOPerPort(t *testing.T) {
	mb := mailbox.NewMailbox(testActor("test"), mailbox.PanickingSender{})

	handle, receiver := mailbox.OpenPort[intMsg](mb)
	defer receiver.Close()

	for i := intMsg(0); i < 10; i++ {
		require.True(t, handle.Send(i))
	}

	ctx := context.Background()
	for i := intMsg(0); i < 10; i++ {
		got, err := receiver.Recv(ctx)
		require.NoError(t, err)
		require.Equal(t, i, got)
	}
}

// TestFIFOPropertyHolds is a property-based variant of TestFIFOPerPort over
// arbitrary sequences.
func TestFIFOPropertyHolds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mb := mailbox.NewMailbox(testActor("test"), mailbox.PanickingSender{})
		handle, receiver := mailbox.OpenPort[intMsg](mb)
		defer receiver.Close()

		seq := rapid.SliceOfN(rapid.Int64Range(-1000, 1000), 0, 50).Draw(t, "seq")

		for _, v := range seq {
			require.True(t, handle.Send(intMsg(v)))
		}

		ctx := context.Background()
		for _, want := range seq {
			got, err := receiver.Recv(ctx)
			require.NoError(t, err)
			require.Equal(t, intMsg(want), got)
		}
	})
}

// TestOncePortAtMostOnce covers invariant 5: after a once-send succeeds, a
// further bind-send to the same port reports Closed and the port is
// removed from the mailbox's dispatch table.
func TestOncePortAtMostOnce(t *testing.T) {
	actor := testActor("test")
	mb := mailbox.NewMailbox(actor, mailbox.PanickingSender{})

	handle, receiver := mailbox.OpenOncePort[intMsg](mb)
	defer receiver.Close()

	env := mustEnvelope(t, mailbox.UnknownActor, handle.ID(), intMsg(7))

	mb.Post(env, discardReturnHandle{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := receiver.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, intMsg(7), got)

	// A further send on the consumed handle reports Closed.
	require.False(t, handle.Send(intMsg(8)))

	// The port should now be gone: a second post to the same index is
	// Unroutable.
	returned := &recordingHandle{}
	mb.Post(mustEnvelope(t, mailbox.UnknownActor, handle.ID(), intMsg(8)), returned)

	require.Len(t, returned.envelopes, 1)
	require.NotNil(t, returned.envelopes[0].Err)
	require.Equal(t, mailbox.Unroutable, returned.envelopes[0].Err.Kind)
}

// TestUndeliverableClosedLoop covers invariant 6: a post to an unbound port
// returns exactly one Undeliverable envelope, with a non-empty error, to
// the caller-supplied return handle.
func TestUndeliverableClosedLoop(t *testing.T) {
	actor := testActor("test")
	mb := mailbox.NewMailbox(actor, mailbox.PanickingSender{})

	unboundPort := mailbox.NewPortId(actor, mailbox.USER_PORT_OFFSET+999)
	env := mustEnvelope(t, mailbox.UnknownActor, unboundPort, intMsg(1))

	returned := &recordingHandle{}
	mb.Post(env, returned)

	require.Len(t, returned.envelopes, 1)
	require.NotNil(t, returned.envelopes[0].Err)
	require.Equal(t, mailbox.Unroutable, returned.envelopes[0].Err.Kind)
}

// TestBoundReturnHandleFallback covers the §9 design note: an actor that
// never bound its own return path still gets a usable (logging) handle
// back, rather than a nil pointer.
func TestBoundReturnHandleFallback(t *testing.T) {
	mb := mailbox.NewMailbox(testActor("test"), mailbox.PanickingSender{})

	h := mb.BoundReturnHandle()
	require.NotNil(t, h)
	require.True(t, h.Send(mailbox.NewUnknownEnvelope(mailbox.PortId{}, wire.Serialized{}, mailbox.NewAttrs())))
}

// TestDropClosesPort covers invariant 10: closing a PortReceiver removes
// the port from the mailbox's dispatch table.
func TestDropClosesPort(t *testing.T) {
	actor := testActor("test")
	mb := mailbox.NewMailbox(actor, mailbox.PanickingSender{})

	handle, receiver := mailbox.OpenPort[intMsg](mb)
	receiver.Close()

	returned := &recordingHandle{}
	mb.Post(mustEnvelope(t, mailbox.UnknownActor, handle.ID(), intMsg(1)), returned)

	require.Len(t, returned.envelopes, 1)
	require.Equal(t, mailbox.Unroutable, returned.envelopes[0].Err.Kind)
}

// maxAccumulator folds int64 updates into their running maximum, the
// scenario E2 accumulator.
type maxAccumulator struct{}

func (maxAccumulator) Init() int64 { return math.MinInt64 }

func (maxAccumulator) Fold(state int64, update intMsg) int64 {
	if int64(update) > state {
		return int64(update)
	}
	return state
}

// TestAccumulatorCoalescingE2 covers invariant 9 and scenario E2: after each
// receive, the observed value is the running max; sends between receives
// coalesce to the latest fold.
func TestAccumulatorCoalescingE2(t *testing.T) {
	mb := mailbox.NewMailbox(testActor("test"), mailbox.PanickingSender{})

	handle, receiver := mailbox.OpenAccumPort[intMsg, int64](
		mb, maxAccumulator{}, mailbox.ReducerSpec{Name: "max"},
	)
	defer receiver.Close()

	ctx := context.Background()

	for _, v := range []intMsg{-3, -2, -1, 0, 1, 2, 3} {
		require.True(t, handle.Send(v))

		got, err := receiver.Recv(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(v), got)
	}

	// Three sends with no interleaved receive: only the final fold (max)
	// should be observed.
	handle.Send(1)
	handle.Send(3)
	handle.Send(2)

	got, err := receiver.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), got)
}

// TestMailboxForwardsNonLocalEnvelopes exercises the forwarder path: a post
// addressed to a different actor than the mailbox's own is delegated
// unchanged.
func TestMailboxForwardsNonLocalEnvelopes(t *testing.T) {
	var forwarded mailbox.MessageEnvelope
	forwarder := mailbox.SenderFunc(func(e mailbox.MessageEnvelope, _ mailbox.PortHandle[mailbox.MessageEnvelope]) {
		forwarded = e
	})

	mb := mailbox.NewMailbox(testActor("test"), forwarder)

	other := mailbox.NewPortId(testActor("other"), mailbox.USER_PORT_OFFSET)
	env := mustEnvelope(t, mailbox.UnknownActor, other, intMsg(42))

	mb.Post(env, discardReturnHandle{})

	require.Equal(t, other, forwarded.Dest)
}

type discardReturnHandle struct{}

func (discardReturnHandle) ID() mailbox.PortId { return mailbox.PortId{} }

func (discardReturnHandle) Send(mailbox.MessageEnvelope) bool { return true }

type recordingHandle struct {
	envelopes []mailbox.MessageEnvelope
}

func (*recordingHandle) ID() mailbox.PortId { return mailbox.PortId{} }

func (h *recordingHandle) Send(msg mailbox.MessageEnvelope) bool {
	h.envelopes = append(h.envelopes, msg)
	return true
}
