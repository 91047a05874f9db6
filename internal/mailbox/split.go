package mailbox

import (
	"sync"

	"github.com/google/uuid"

	"github.com/quillhq/hyperbox/internal/mailbox/wire"
)

// SplitPort is a secondary endpoint that forwards or reduces updates toward
// a single primary port, possibly on a different mailbox. A SplitPort is
// not itself bound anywhere; instead each peer that wants to post through
// it is handed its own copy via NewCopy, installed on that peer's own
// mailbox with BindUntyped. Buffering is scoped per origin copy so that
// concurrent peers never have their updates folded into the same reduced
// batch — only a single origin's own ordering is preserved; within a
// single origin, the mutex prevents interleaved reductions.
type SplitPort struct {
	target  func(headers Attrs, data wire.Serialized) error
	reducer Reducer
	maxBuf  int

	mu      sync.Mutex
	buffers map[uuid.UUID][]wire.Serialized
}

// NewSplitPort builds a SplitPort that forwards to target. If reducer is
// nil, every update is forwarded verbatim, one for one; otherwise updates
// are buffered per origin until cfg.SplitMaxBufferSize are collected, then
// folded by reducer.ReduceUpdates into a single update before forwarding.
// Any residual buffer under the threshold is never flushed — a documented
// incompleteness.
func NewSplitPort(
	target func(headers Attrs, data wire.Serialized) error,
	reducer Reducer,
	cfg Config,
) *SplitPort {

	maxBuf := cfg.SplitMaxBufferSize
	if maxBuf < 1 {
		maxBuf = 1
	}

	return &SplitPort{
		target:  target,
		reducer: reducer,
		maxBuf:  maxBuf,
		buffers: make(map[uuid.UUID][]wire.Serialized),
	}
}

// NewSplitPortToMailbox builds a SplitPort whose target is the port bound
// at destIndex on dest. This is the common case: splitting a port so a
// remote peer can post updates that land, possibly reduced, on an existing
// local port.
func NewSplitPortToMailbox(
	dest *Mailbox, destIndex uint64, reducer Reducer, cfg Config,
) *SplitPort {

	target := func(headers Attrs, data wire.Serialized) error {
		binding, ok := dest.lookup(destIndex)
		if !ok {
			return NewUnroutable("split target port not bound")
		}

		stillValid, sErr := binding.sendSerialized(headers, data)
		if !stillValid {
			dest.remove(destIndex)
		}
		if sErr != nil {
			return sErr
		}
		return nil
	}

	return NewSplitPort(target, reducer, cfg)
}

// NewCopy returns a fresh per-origin forwarding function, suitable for
// installing via BindUntyped on a peer's own mailbox (one call per peer
// that should be able to post through this split port). Each copy buffers
// independently under its own origin token.
func (s *SplitPort) NewCopy() func(headers Attrs, data wire.Serialized) error {
	origin := uuid.New()

	return func(headers Attrs, data wire.Serialized) error {
		return s.forward(origin, headers, data)
	}
}

func (s *SplitPort) forward(origin uuid.UUID, headers Attrs, data wire.Serialized) error {
	if s.reducer == nil {
		return s.target(headers, data)
	}

	s.mu.Lock()
	buf := append(s.buffers[origin], data)
	if len(buf) < s.maxBuf {
		s.buffers[origin] = buf
		s.mu.Unlock()
		return nil
	}
	delete(s.buffers, origin)

	reduced, err := s.reducer.ReduceUpdates(buf)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.target(headers, reduced)
}
