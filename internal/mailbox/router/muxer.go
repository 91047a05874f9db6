package router

import (
	"fmt"
	"sync"

	"github.com/quillhq/hyperbox/internal/mailbox"
)

// Muxer is an exact-match registry: bind an actor id to a sender, and every
// envelope addressed to that actor is delegated verbatim. Unlike
// PrefixRouter, there is no partial matching — an unbound destination is
// always Unroutable.
type Muxer struct {
	mu    sync.RWMutex
	table map[mailbox.ActorId]mailbox.Sender
}

// NewMuxer returns an empty Muxer.
func NewMuxer() *Muxer {
	return &Muxer{table: make(map[mailbox.ActorId]mailbox.Sender)}
}

// Bind installs sender for actor. It fails if actor is already bound; the
// caller must Unbind first.
func (m *Muxer) Bind(actor mailbox.ActorId, sender mailbox.Sender) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, occupied := m.table[actor]; occupied {
		return fmt.Errorf("muxer: %s already bound", actor)
	}

	m.table[actor] = sender
	return nil
}

// Unbind removes whatever sender is bound for actor, if any.
func (m *Muxer) Unbind(actor mailbox.ActorId) {
	m.mu.Lock()
	delete(m.table, actor)
	m.mu.Unlock()
}

// Post implements mailbox.Sender.
func (m *Muxer) Post(
	envelope mailbox.MessageEnvelope, returnHandle mailbox.PortHandle[mailbox.MessageEnvelope],
) {

	m.mu.RLock()
	sender, ok := m.table[envelope.Dest.Actor]
	m.mu.RUnlock()

	if !ok {
		mailbox.Undeliverable(
			envelope,
			mailbox.NewUnroutable("no muxer entry for "+envelope.Dest.Actor.String()),
			returnHandle,
		)
		return
	}

	sender.Post(envelope, returnHandle)
}
