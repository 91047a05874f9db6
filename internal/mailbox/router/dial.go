package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/singleflight"

	"github.com/quillhq/hyperbox/internal/mailbox"
	"github.com/quillhq/hyperbox/internal/mailbox/client"
	"github.com/quillhq/hyperbox/internal/mailbox/transport"
)

type addrEntry struct {
	ref  Reference
	addr transport.ChannelAddr
}

func lessAddrEntry(a, b addrEntry) bool {
	return lessReference(a.ref, b.ref)
}

type cacheEntry struct {
	client *client.MailboxClient
	addr   transport.ChannelAddr
}

// DialRouter resolves a destination actor to a remote address via a
// longest-prefix address book, then to a cached MailboxClient via a
// connection cache keyed by address. Concurrent dials to the same address
// are collapsed into a single transport.Dial call via singleflight.
type DialRouter struct {
	dialer transport.Dialer

	mu          sync.RWMutex
	addressBook *btree.BTreeG[addrEntry]

	cacheMu sync.Mutex
	cache   map[transport.ChannelAddr]*cacheEntry

	// genMu guards generation and evictedAt, which together let an
	// in-flight dial notice that its address was evicted (via Bind or
	// Unbind) while the dial was still outstanding, so it doesn't resurrect
	// a cache entry for an address a caller has already superseded.
	genMu      sync.Mutex
	generation uint64
	evictedAt  map[transport.ChannelAddr]uint64

	dialGroup singleflight.Group

	defaultSender mailbox.Sender

	// dialTimeout bounds each call to the underlying transport.Dialer. If
	// None, dials are attempted with no deadline of this router's own
	// making.
	dialTimeout fn.Option[time.Duration]
}

// DialRouterOption configures a DialRouter at construction time.
type DialRouterOption func(*DialRouter)

// WithDialTimeout bounds every call to the underlying transport.Dialer.Dial
// with a deadline of d.
func WithDialTimeout(d time.Duration) DialRouterOption {
	return func(r *DialRouter) {
		r.dialTimeout = fn.Some(d)
	}
}

// NewDialRouter returns a DialRouter that dials through dialer, falling
// back to defaultSender for any destination with no address-book entry.
// Pass an UnroutableSender as defaultSender for a router with no fallback.
func NewDialRouter(
	dialer transport.Dialer, defaultSender mailbox.Sender, opts ...DialRouterOption,
) *DialRouter {

	r := &DialRouter{
		dialer:        dialer,
		addressBook:   btree.NewG(32, lessAddrEntry),
		cache:         make(map[transport.ChannelAddr]*cacheEntry),
		evictedAt:     make(map[transport.ChannelAddr]uint64),
		defaultSender: defaultSender,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Bind associates ref with addr, replacing any previous address bound at
// exactly that key. If the address changed, the stale cache entry (if any)
// is evicted so the next post re-dials the new address.
func (d *DialRouter) Bind(ref Reference, addr transport.ChannelAddr) {
	d.mu.Lock()
	old, existed := d.addressBook.ReplaceOrInsert(addrEntry{ref: ref, addr: addr})
	d.mu.Unlock()

	if existed && old.addr != addr {
		d.evict(old.addr)
	}
}

// Unbind removes every address-book entry whose key has ref as a prefix,
// evicting the matching cached senders.
func (d *DialRouter) Unbind(ref Reference) {
	d.mu.Lock()
	var removed []addrEntry
	d.addressBook.Ascend(func(entry addrEntry) bool {
		if ref.IsPrefixOf(entry.ref) {
			removed = append(removed, entry)
		}
		return true
	})
	for _, entry := range removed {
		d.addressBook.Delete(entry)
	}
	d.mu.Unlock()

	for _, entry := range removed {
		d.evict(entry.addr)
	}
}

// lookupAddr resolves dest by the same longest-prefix rule as PrefixRouter,
// but against ChannelAddr values.
func (d *DialRouter) lookupAddr(dest Reference) (transport.ChannelAddr, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var (
		found transport.ChannelAddr
		ok    bool
	)

	d.addressBook.DescendLessOrEqual(addrEntry{ref: dest}, func(entry addrEntry) bool {
		if entry.ref.IsPrefixOf(dest) {
			found, ok = entry.addr, true
			return false
		}
		return true
	})

	return found, ok
}

// dial returns the cached MailboxClient for addr, dialing it exactly once
// even if multiple goroutines request it concurrently (invariant 8: dial
// cache idempotence).
func (d *DialRouter) dial(ctx context.Context, addr transport.ChannelAddr) (*client.MailboxClient, error) {
	d.cacheMu.Lock()
	if entry, ok := d.cache[addr]; ok {
		d.cacheMu.Unlock()
		return entry.client, nil
	}
	d.cacheMu.Unlock()

	d.genMu.Lock()
	startGen := d.generation
	d.genMu.Unlock()

	v, err, _ := d.dialGroup.Do(addr.String(), func() (interface{}, error) {
		d.cacheMu.Lock()
		if entry, ok := d.cache[addr]; ok {
			d.cacheMu.Unlock()
			return entry.client, nil
		}
		d.cacheMu.Unlock()

		dialCtx := ctx
		if timeout := d.dialTimeout.UnwrapOr(0); timeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		tx, err := d.dialer.Dial(dialCtx, addr)
		if err != nil {
			return nil, err
		}

		mc := client.NewMailboxClient(tx)

		// If addr was evicted (Bind to a new address, or Unbind) after we
		// captured startGen but before this dial completed, the caller has
		// already moved on from this address; don't resurrect a cache
		// entry for it, and close the connection we just opened.
		d.genMu.Lock()
		stale := d.evictedAt[addr] > startGen
		d.genMu.Unlock()

		if stale {
			_ = mc.Close()
			return nil, fmt.Errorf("dial router: %s evicted during dial", addr)
		}

		d.cacheMu.Lock()
		d.cache[addr] = &cacheEntry{client: mc, addr: addr}
		d.cacheMu.Unlock()

		return mc, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*client.MailboxClient), nil
}

func (d *DialRouter) evict(addr transport.ChannelAddr) {
	d.genMu.Lock()
	d.generation++
	d.evictedAt[addr] = d.generation
	d.genMu.Unlock()

	d.cacheMu.Lock()
	entry, ok := d.cache[addr]
	if ok {
		delete(d.cache, addr)
	}
	d.cacheMu.Unlock()

	if ok {
		if err := entry.client.Close(); err != nil {
			log.WarnS(noCtx, "error closing evicted dial router cache entry",
				"addr", addr.String(), "err", err)
		}
	}
}

// Post implements mailbox.Sender.
func (d *DialRouter) Post(
	envelope mailbox.MessageEnvelope, returnHandle mailbox.PortHandle[mailbox.MessageEnvelope],
) {

	dest := RefFromActorId(envelope.Dest.Actor)

	addr, ok := d.lookupAddr(dest)
	if !ok {
		d.defaultSender.Post(envelope, returnHandle)
		return
	}

	mc, err := d.dial(context.Background(), addr)
	if err != nil {
		mailbox.Undeliverable(
			envelope,
			mailbox.NewUnroutable("cannot dial destination: "+err.Error()),
			returnHandle,
		)
		return
	}

	mc.Post(envelope, returnHandle)
}
