package router

import (
	"sync"
	"weak"

	"github.com/google/btree"

	"github.com/quillhq/hyperbox/internal/mailbox"
)

type refSender struct {
	ref    Reference
	sender mailbox.Sender
}

func lessRefSender(a, b refSender) bool {
	return lessReference(a.ref, b.ref)
}

// prefixTable is the shared, mutex-guarded sorted map a PrefixRouter owns
// and a WeakPrefixRouter only weakly references. Splitting the table out
// like this is what makes the weak variant possible: PrefixRouter holds
// *prefixTable directly (a strong reference keeping it alive), while
// WeakPrefixRouter holds only a weak.Pointer to the same value.
type prefixTable struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[refSender]
}

func newPrefixTable() *prefixTable {
	return &prefixTable{tree: btree.NewG(32, lessRefSender)}
}

func (t *prefixTable) bind(ref Reference, sender mailbox.Sender) {
	t.mu.Lock()
	t.tree.ReplaceOrInsert(refSender{ref: ref, sender: sender})
	t.mu.Unlock()
}

// resolve returns the sender bound at the longest prefix p of dest with
// p <= dest, per invariant 7. Entries are walked in descending order from
// dest itself, so the first one whose key is actually a structural prefix
// of dest is the longest such match.
func (t *prefixTable) resolve(dest Reference) (mailbox.Sender, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		found   mailbox.Sender
		ok      bool
	)

	t.tree.DescendLessOrEqual(refSender{ref: dest}, func(entry refSender) bool {
		if entry.ref.IsPrefixOf(dest) {
			found, ok = entry.sender, true
			return false
		}
		return true
	})

	return found, ok
}

func (t *prefixTable) post(
	envelope mailbox.MessageEnvelope, returnHandle mailbox.PortHandle[mailbox.MessageEnvelope],
) {

	dest := RefFromActorId(envelope.Dest.Actor)

	sender, ok := t.resolve(dest)
	if !ok {
		mailbox.Undeliverable(
			envelope,
			mailbox.NewUnroutable("no prefix route for "+envelope.Dest.String()),
			returnHandle,
		)
		return
	}

	sender.Post(envelope, returnHandle)
}

// PrefixRouter dispatches by longest matching prefix over a sorted table of
// References. There is no unbind in the core contract; a rebind via Bind
// simply replaces whatever sender previously occupied that exact key.
type PrefixRouter struct {
	shared *prefixTable
}

// NewPrefixRouter returns an empty PrefixRouter.
func NewPrefixRouter() *PrefixRouter {
	return &PrefixRouter{shared: newPrefixTable()}
}

// Bind installs sender at ref, replacing any sender previously bound at
// exactly that key.
func (r *PrefixRouter) Bind(ref Reference, sender mailbox.Sender) {
	r.shared.bind(ref, sender)
}

// Post implements mailbox.Sender.
func (r *PrefixRouter) Post(
	envelope mailbox.MessageEnvelope, returnHandle mailbox.PortHandle[mailbox.MessageEnvelope],
) {
	r.shared.post(envelope, returnHandle)
}

// Weak returns a WeakPrefixRouter backed by the same table as r, without
// extending r's lifetime: once every strong reference to r (and its table)
// is gone, the weak router's posts start failing BrokenLink instead of
// keeping the table alive. This is the idiomatic Go answer to a router
// cycle — a sender held by something the router itself contains should
// hold the router weakly, using the standard library's weak.Pointer
// rather than a hand-rolled generation-counter
// workaround.
func (r *PrefixRouter) Weak() *WeakPrefixRouter {
	return &WeakPrefixRouter{ptr: weak.Make(r.shared)}
}

// WeakPrefixRouter is a PrefixRouter that does not keep its backing table
// alive on its own.
type WeakPrefixRouter struct {
	ptr weak.Pointer[prefixTable]
}

// Post implements mailbox.Sender. If the backing table has already been
// collected, the envelope is returned to sender as BrokenLink rather than
// delivered.
func (r *WeakPrefixRouter) Post(
	envelope mailbox.MessageEnvelope, returnHandle mailbox.PortHandle[mailbox.MessageEnvelope],
) {

	table := r.ptr.Value()
	if table == nil {
		mailbox.Undeliverable(
			envelope,
			mailbox.NewBrokenLink("failed to upgrade weak router"),
			returnHandle,
		)
		return
	}

	table.post(envelope, returnHandle)
}
