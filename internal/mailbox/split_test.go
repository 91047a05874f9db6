package mailbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillhq/hyperbox/internal/mailbox"
	"github.com/quillhq/hyperbox/internal/mailbox/wire"
)

// sumReducer folds a batch of int64 updates into their sum, reduction of a
// singleton batch being the identity.
type sumReducer struct{}

func (sumReducer) ReduceUpdates(updates []wire.Serialized) (wire.Serialized, error) {
	var total int64
	for _, u := range updates {
		v, err := wire.Deserialize[intMsg](u)
		if err != nil {
			return wire.Serialized{}, err
		}
		total += int64(v)
	}
	return wire.Serialize(intMsg(total))
}

// TestSplitPortE6 covers scenario E6: with SplitMaxBufferSize=1, posting 4
// updates via two split copies of a port yields 4 values on the receiver
// whose multiset equals the input multiset.
func TestSplitPortE6(t *testing.T) {
	actor := mailbox.NewActorId("test", 0, "primary")
	mb := mailbox.NewMailbox(actor, mailbox.PanickingSender{})

	_, receiver := mailbox.OpenPort[intMsg](mb)
	defer receiver.Close()

	primaryIndex := mailbox.USER_PORT_OFFSET
	split := mailbox.NewSplitPortToMailbox(
		mb, primaryIndex, sumReducer{}, mailbox.Config{SplitMaxBufferSize: 1},
	)

	copyA := split.NewCopy()
	copyB := split.NewCopy()

	values := []intMsg{1, 2, 3, 4}
	copies := []func(mailbox.Attrs, wire.Serialized) error{copyA, copyA, copyB, copyB}

	for i, v := range values {
		data, err := wire.Serialize(v)
		require.NoError(t, err)
		require.NoError(t, copies[i](mailbox.NewAttrs(), data))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []intMsg
	for i := 0; i < len(values); i++ {
		v, err := receiver.Recv(ctx)
		require.NoError(t, err)
		got = append(got, v)
	}

	require.ElementsMatch(t, values, got)
}

// TestSplitPortNoReducerForwardsVerbatim confirms that a reducer-less split
// port forwards each update one-for-one.
func TestSplitPortNoReducerForwardsVerbatim(t *testing.T) {
	actor := mailbox.NewActorId("test", 0, "primary")
	mb := mailbox.NewMailbox(actor, mailbox.PanickingSender{})

	_, receiver := mailbox.OpenPort[intMsg](mb)
	defer receiver.Close()

	split := mailbox.NewSplitPortToMailbox(
		mb, mailbox.USER_PORT_OFFSET, nil, mailbox.DefaultConfig(),
	)
	copyA := split.NewCopy()

	data, err := wire.Serialize(intMsg(42))
	require.NoError(t, err)
	require.NoError(t, copyA(mailbox.NewAttrs(), data))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := receiver.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, intMsg(42), v)
}
