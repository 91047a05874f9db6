package router_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillhq/hyperbox/internal/mailbox"
	"github.com/quillhq/hyperbox/internal/mailbox/router"
)

// TestPrefixRouterE4 covers scenario E4 and invariant 7: a post to
// world1[1].actor1 resolves through the more specific binding, while a post
// to world1[1].actor0 falls back to the coarser world1[1] binding.
func TestPrefixRouterE4(t *testing.T) {
	r := router.NewPrefixRouter()

	var m2Seen, m3Seen []mailbox.MessageEnvelope
	m2 := mailbox.SenderFunc(func(e mailbox.MessageEnvelope, _ mailbox.PortHandle[mailbox.MessageEnvelope]) {
		m2Seen = append(m2Seen, e)
	})
	m3 := mailbox.SenderFunc(func(e mailbox.MessageEnvelope, _ mailbox.PortHandle[mailbox.MessageEnvelope]) {
		m3Seen = append(m3Seen, e)
	})

	r.Bind(router.RefProc("world1", 1), m2)
	r.Bind(router.RefActor("world1", 1, "actor1"), m3)

	destActor1 := mailbox.NewPortId(mailbox.NewActorId("world1", 1, "actor1"), 0)
	env1, err := mailbox.SerializeEnvelope(
		mailbox.UnknownActor, destActor1, intMsg(1), mailbox.NewAttrs(),
	)
	require.NoError(t, err)
	r.Post(env1, &recordingHandle{})

	destActor0 := mailbox.NewPortId(mailbox.NewActorId("world1", 1, "actor0"), 0)
	env2, err := mailbox.SerializeEnvelope(
		mailbox.UnknownActor, destActor0, intMsg(2), mailbox.NewAttrs(),
	)
	require.NoError(t, err)
	r.Post(env2, &recordingHandle{})

	require.Len(t, m3Seen, 1)
	require.Len(t, m2Seen, 1)
}

func TestPrefixRouterUnroutable(t *testing.T) {
	r := router.NewPrefixRouter()

	dest := mailbox.NewPortId(mailbox.NewActorId("nowhere", 0, ""), 0)
	env, err := mailbox.SerializeEnvelope(mailbox.UnknownActor, dest, intMsg(1), mailbox.NewAttrs())
	require.NoError(t, err)

	returned := &recordingHandle{}
	r.Post(env, returned)

	require.Len(t, returned.envelopes, 1)
	require.Equal(t, mailbox.Unroutable, returned.envelopes[0].Err.Kind)
}

// TestWeakPrefixRouterUpgradeFails covers the BrokenLink path taken when a
// WeakPrefixRouter's backing table has already been collected.
func TestWeakPrefixRouterUpgradeFails(t *testing.T) {
	weak := func() *router.WeakPrefixRouter {
		r := router.NewPrefixRouter()
		r.Bind(router.RefWorld("world1"), mailbox.SenderFunc(
			func(mailbox.MessageEnvelope, mailbox.PortHandle[mailbox.MessageEnvelope]) {},
		))
		return r.Weak()
	}()

	dest := mailbox.NewPortId(mailbox.NewActorId("world1", 0, "actor1"), 0)
	env, err := mailbox.SerializeEnvelope(mailbox.UnknownActor, dest, intMsg(1), mailbox.NewAttrs())
	require.NoError(t, err)

	returned := &recordingHandle{}
	weak.Post(env, returned)

	// Depending on GC timing the table may or may not have been collected
	// yet; both outcomes are valid, but if it failed it must be reported
	// as BrokenLink, never silently dropped or panicked.
	if len(returned.envelopes) == 1 && returned.envelopes[0].Err != nil {
		require.Equal(t, mailbox.BrokenLink, returned.envelopes[0].Err.Kind)
	}
}
