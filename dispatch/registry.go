package dispatch

import (
	"sync"

	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/message"
)

// Consumer accepts one decoded Message read from the peer it was
// registered against. It may fail; failures are logged and swallowed.
type Consumer func(m message.Message) error

// Supplier produces at most one Message to send to the peer it was
// registered against when polled. It may fail; failures are logged and
// swallowed. The bool return is false when the supplier has nothing to
// send this poll.
type Supplier func() (message.Message, bool, error)

type consumerEntry struct {
	mu        sync.Mutex
	consumers []Consumer
}

func (e *consumerEntry) add(c Consumer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consumers = append(e.consumers, c)
}

func (e *consumerEntry) snapshot() []Consumer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Consumer, len(e.consumers))
	copy(out, e.consumers)
	return out
}

type supplierEntry struct {
	mu        sync.Mutex
	suppliers []Supplier
}

func (e *supplierEntry) add(s Supplier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.suppliers = append(e.suppliers, s)
}

func (e *supplierEntry) snapshot() []Supplier {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Supplier, len(e.suppliers))
	copy(out, e.suppliers)
	return out
}

// consumerRegistry maps a peer to the set of consumers registered for
// it. Registration is safe from any goroutine; rangeEntries takes a
// snapshot-safe, insertion-ordered view per peer at the instant of
// each call.
type consumerRegistry struct {
	entries sync.Map // core.PeerID -> *consumerEntry
}

func (r *consumerRegistry) add(peer core.PeerID, c Consumer) {
	v, _ := r.entries.LoadOrStore(peer, &consumerEntry{})
	v.(*consumerEntry).add(c)
}

func (r *consumerRegistry) rangeEntries(f func(peer core.PeerID, consumers []Consumer)) {
	r.entries.Range(func(k, v interface{}) bool {
		f(k.(core.PeerID), v.(*consumerEntry).snapshot())
		return true
	})
}

// supplierRegistry maps a peer to the ordered collection of suppliers
// registered for it.
type supplierRegistry struct {
	entries sync.Map // core.PeerID -> *supplierEntry
}

func (r *supplierRegistry) add(peer core.PeerID, s Supplier) {
	v, _ := r.entries.LoadOrStore(peer, &supplierEntry{})
	v.(*supplierEntry).add(s)
}

func (r *supplierRegistry) rangeEntries(f func(peer core.PeerID, suppliers []Supplier)) {
	r.entries.Range(func(k, v interface{}) bool {
		f(k.(core.PeerID), v.(*supplierEntry).snapshot())
		return true
	})
}
