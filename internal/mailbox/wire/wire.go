// Package wire provides the minimal serialization boundary the mailbox
// subsystem needs. It stands in for a real wire codec, treated as an
// external collaborator: a named, versioned binary format with round-trip
// serialize/deserialize and a stable per-type name tag.
package wire

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"reflect"
	"sync"
)

// Named supplies a stable type name string used for routing and validation.
// Real deployments back this with a generated, globally unique URI; here it
// is whatever the message type reports.
type Named interface {
	TypeName() string
}

// Serialized is an opaque binary blob carrying a type-name tag, a CRC, and
// the encoded payload. It is the only form a message takes once it leaves
// the sender's local type system.
type Serialized struct {
	// TypeName identifies the Go type the payload was encoded from.
	TypeName string

	// CRC guards against truncated or corrupted payloads.
	CRC uint32

	// Data is the encoded payload.
	Data []byte
}

// Serialize encodes v into a Serialized envelope payload.
func Serialize[T Named](v T) (Serialized, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return Serialized{}, fmt.Errorf("wire: encode %T: %w", v, err)
	}

	data := buf.Bytes()

	return Serialized{
		TypeName: v.TypeName(),
		CRC:      crc32.ChecksumIEEE(data),
		Data:     data,
	}, nil
}

// Deserialize decodes a Serialized payload back into T. It fails closed on
// CRC mismatch or a payload whose recorded type name doesn't match T's.
func Deserialize[T Named](s Serialized) (T, error) {
	var zero T

	if crc32.ChecksumIEEE(s.Data) != s.CRC {
		return zero, fmt.Errorf("wire: %w for type %q", ErrCRCMismatch, s.TypeName)
	}

	dec := gob.NewDecoder(bytes.NewReader(s.Data))
	if err := dec.Decode(&zero); err != nil {
		return zero, fmt.Errorf("wire: decode %q: %w", s.TypeName, err)
	}

	if zero.TypeName() != s.TypeName {
		return zero, fmt.Errorf("wire: %w: payload tagged %q, decoded as %q",
			ErrTypeMismatch, s.TypeName, zero.TypeName())
	}

	return zero, nil
}

// ErrCRCMismatch indicates the payload failed its checksum.
var ErrCRCMismatch = fmt.Errorf("crc mismatch")

// ErrTypeMismatch indicates the payload's recorded type name does not match
// the type it was decoded into.
var ErrTypeMismatch = fmt.Errorf("type name mismatch")

// registry is a process-global map from a Named type's stable name to its
// reflect.Type, enabling name-driven dispatch for code that only has a type
// name string (e.g. split-port forwarding, diagnostics).
var registry sync.Map // map[string]reflect.Type

// Register records T's reflect.Type under its TypeName so that Lookup can
// later recover the Go type from a name alone.
func Register[T Named]() {
	var zero T
	registry.Store(zero.TypeName(), reflect.TypeOf(zero))
}

// Lookup returns the registered reflect.Type for a type name, if any.
func Lookup(name string) (reflect.Type, bool) {
	v, ok := registry.Load(name)
	if !ok {
		return nil, false
	}

	return v.(reflect.Type), true
}
