package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/quillhq/hyperbox/internal/mailbox/wire"
)

type testPayload struct {
	A int64
	B string
}

func (testPayload) TypeName() string { return "wire_test.testPayload" }

func TestSerializeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := testPayload{
			A: rapid.Int64().Draw(t, "a"),
			B: rapid.String().Draw(t, "b"),
		}

		s, err := wire.Serialize(in)
		require.NoError(t, err)

		out, err := wire.Deserialize[testPayload](s)
		require.NoError(t, err)
		require.Equal(t, in, out)
	})
}

func TestDeserializeCRCMismatch(t *testing.T) {
	s, err := wire.Serialize(testPayload{A: 1, B: "x"})
	require.NoError(t, err)

	s.CRC++

	_, err = wire.Deserialize[testPayload](s)
	require.ErrorIs(t, err, wire.ErrCRCMismatch)
}

type otherPayload struct{ N int }

func (otherPayload) TypeName() string { return "wire_test.otherPayload" }

func TestDeserializeTypeMismatch(t *testing.T) {
	s, err := wire.Serialize(testPayload{A: 1, B: "x"})
	require.NoError(t, err)

	// Tamper with the tag so the decoded value's own TypeName disagrees
	// with what's recorded on the envelope.
	s.TypeName = "wire_test.otherPayload"

	_, err = wire.Deserialize[testPayload](s)
	require.Error(t, err)
}

func TestRegisterLookup(t *testing.T) {
	wire.Register[testPayload]()

	typ, ok := wire.Lookup("wire_test.testPayload")
	require.True(t, ok)
	require.Equal(t, "testPayload", typ.Name())

	_, ok = wire.Lookup("wire_test.nonexistent")
	require.False(t, ok)
}
