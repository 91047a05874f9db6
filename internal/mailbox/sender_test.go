package mailbox_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillhq/hyperbox/internal/mailbox"
)

// recordingSender counts how many envelopes it was posted, standing in for
// a concrete Sender implementation a BoxedSender might wrap.
type recordingSender struct {
	posts int
}

func (s *recordingSender) Post(
	envelope mailbox.MessageEnvelope, returnHandle mailbox.PortHandle[mailbox.MessageEnvelope],
) {
	s.posts++
}

// TestBoxedSenderPostDelegates covers §4.5: a BoxedSender forwards every
// post to the Sender it wraps.
func TestBoxedSenderPostDelegates(t *testing.T) {
	inner := &recordingSender{}
	boxed := mailbox.NewBoxedSender("recordingSender", inner)

	env := mustEnvelope(t, mailbox.UnknownActor, mailbox.NewPortId(testActor("dest"), mailbox.USER_PORT_OFFSET), intMsg(1))
	boxed.Post(env, &recordingHandle{})
	boxed.Post(env, &recordingHandle{})

	require.Equal(t, 2, inner.posts)
	require.Equal(t, "recordingSender", boxed.TypeName())
}

// TestDowncastSenderSucceedsOnMatchingTag covers the §9 Open Question this
// module resolves with a type tag plus a Go type assertion: a downcast
// whose tag and concrete type both match recovers the original Sender.
func TestDowncastSenderSucceedsOnMatchingTag(t *testing.T) {
	inner := &recordingSender{}
	boxed := mailbox.NewBoxedSender("recordingSender", inner)

	recovered, ok := mailbox.DowncastSender[*recordingSender](boxed, "recordingSender")
	require.True(t, ok)
	require.Same(t, inner, recovered)
}

// TestDowncastSenderFailsOnWrongTag covers the negative case: a tag mismatch
// never succeeds, even when the concrete type underneath would otherwise
// satisfy the assertion.
func TestDowncastSenderFailsOnWrongTag(t *testing.T) {
	inner := &recordingSender{}
	boxed := mailbox.NewBoxedSender("recordingSender", inner)

	_, ok := mailbox.DowncastSender[*recordingSender](boxed, "someOtherSender")
	require.False(t, ok)
}

// TestDowncastSenderFailsOnWrongType covers the other negative case: a
// matching tag alone is not proof of the underlying type — the concrete Go
// type assertion must also agree.
func TestDowncastSenderFailsOnWrongType(t *testing.T) {
	inner := &recordingSender{}
	boxed := mailbox.NewBoxedSender("recordingSender", inner)

	_, ok := mailbox.DowncastSender[mailbox.UnroutableSender](boxed, "recordingSender")
	require.False(t, ok)
}

// TestDowncastSenderNilBoxed covers the defensive nil-receiver case a
// caller might hit when a lookup that could return a *BoxedSender came up
// empty.
func TestDowncastSenderNilBoxed(t *testing.T) {
	_, ok := mailbox.DowncastSender[*recordingSender](nil, "recordingSender")
	require.False(t, ok)
}
