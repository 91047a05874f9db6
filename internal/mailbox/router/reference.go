// Package router provides the three sender layers that sit above a plain
// Mailbox: an exact-match Muxer, a longest-prefix-matching PrefixRouter (and
// its weak-backreference variant), and a DialRouter that resolves prefixes
// to remote addresses and manages a dial cache.
package router

import "github.com/quillhq/hyperbox/internal/mailbox"

// Reference is a routing-table key shaped like an ActorId but with each
// field optionally unset, letting a single binding cover every actor under
// a world, a world+proc, or a single named actor. Both the prefix router
// and the dial router key their sorted tables on Reference.
type Reference struct {
	World   string
	HasProc bool
	Proc    uint64
	HasName bool
	Name    string
}

// RefWorld builds a Reference covering every actor in world, regardless of
// proc or name.
func RefWorld(world string) Reference {
	return Reference{World: world}
}

// RefProc builds a Reference covering every actor at (world, proc),
// regardless of name.
func RefProc(world string, proc uint64) Reference {
	return Reference{World: world, HasProc: true, Proc: proc}
}

// RefActor builds a Reference naming one exact actor.
func RefActor(world string, proc uint64, name string) Reference {
	return Reference{World: world, HasProc: true, Proc: proc, HasName: true, Name: name}
}

// RefFromActorId builds the fully-specified Reference for actor, used both
// as a routing-table key when binding an exact actor and as the lookup
// pivot when resolving a destination.
func RefFromActorId(actor mailbox.ActorId) Reference {
	return RefActor(actor.World, actor.Proc, actor.Name)
}

// IsPrefixOf reports whether r, treated as a routing-table key, covers
// dest: every field r specifies must match the corresponding field on
// dest; fields r leaves unset are free.
func (r Reference) IsPrefixOf(dest Reference) bool {
	if r.World != dest.World {
		return false
	}
	if r.HasProc && (!dest.HasProc || r.Proc != dest.Proc) {
		return false
	}
	if r.HasName && (!dest.HasName || r.Name != dest.Name) {
		return false
	}
	return true
}

// lessReference orders References by granularity within a world: an unset
// field sorts before any set value at that depth, so a coarser binding
// (e.g. world-only) always sorts before a more specific one that shares its
// matching prefix (e.g. world+proc). This is what lets DescendLessOrEqual
// against a fully-specified pivot surface the longest matching prefix
// first.
func lessReference(a, b Reference) bool {
	if a.World != b.World {
		return a.World < b.World
	}
	if a.HasProc != b.HasProc {
		return !a.HasProc
	}
	if a.HasProc && a.Proc != b.Proc {
		return a.Proc < b.Proc
	}
	if a.HasName != b.HasName {
		return !a.HasName
	}
	if a.HasName && a.Name != b.Name {
		return a.Name < b.Name
	}
	return false
}
