package mailbox

import "fmt"

// ActorId is the composite identifier for an actor: the world it belongs to,
// the process rank within that world, its name, and an incarnation counter
// (pid) distinguishing successive actors that reuse the same name after a
// restart. ActorId has a total order, used by the prefix router and dial
// router to keep their routing tables sorted.
type ActorId struct {
	World string
	Proc  uint64
	Name  string
	Pid   uint64
}

// NewActorId builds an ActorId with pid 0.
func NewActorId(world string, proc uint64, name string) ActorId {
	return ActorId{World: world, Proc: proc, Name: name}
}

// String renders the actor id the way the rest of this package's examples
// and tests do: "world[proc]" when unnamed, "world[proc].name" when named,
// with a trailing "#pid" only when the incarnation counter is non-zero.
func (a ActorId) String() string {
	s := fmt.Sprintf("%s[%d]", a.World, a.Proc)
	if a.Name != "" {
		s += "." + a.Name
	}
	if a.Pid != 0 {
		s += fmt.Sprintf("#%d", a.Pid)
	}
	return s
}

// Compare returns -1, 0, or 1 comparing a to b in (world, proc, name, pid)
// lexicographic order.
func (a ActorId) Compare(b ActorId) int {
	if a.World != b.World {
		return compareStr(a.World, b.World)
	}
	if a.Proc != b.Proc {
		return compareUint(a.Proc, b.Proc)
	}
	if a.Name != b.Name {
		return compareStr(a.Name, b.Name)
	}
	return compareUint(a.Pid, b.Pid)
}

// IsPrefixOf reports whether a is a structural prefix of b: a's World always
// matches, and each additional field a specifies (proc, then name) must also
// match. The pid field is never part of the prefix relation — it identifies
// a specific incarnation, not a routing branch.
func (a ActorId) IsPrefixOf(b ActorId) bool {
	return a.World == b.World && a.Proc == b.Proc &&
		(a.Name == "" || a.Name == b.Name)
}

func compareStr(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// USER_PORT_OFFSET is the first port index available for user-allocated
// ports. Indices below it are reserved for framework-assigned handler ports
// (e.g. a Signal port, the Undeliverable<MessageEnvelope> return port).
const USER_PORT_OFFSET uint64 = 1024

// PortId pairs an ActorId with a port index within that actor's mailbox.
type PortId struct {
	Actor ActorId
	Index uint64
}

// NewPortId builds a PortId.
func NewPortId(actor ActorId, index uint64) PortId {
	return PortId{Actor: actor, Index: index}
}

// IsReserved reports whether this port index falls in the
// framework-reserved range (below USER_PORT_OFFSET).
func (p PortId) IsReserved() bool {
	return p.Index < USER_PORT_OFFSET
}

// String renders the port id as "actor/index".
func (p PortId) String() string {
	return fmt.Sprintf("%s/%d", p.Actor, p.Index)
}
