// Package connpool tracks live PeerConnections by peer id. It is the
// PeerConnectionPool collaborator the dispatch core consults before
// touching a peer (spec.md §3): an evicted connection is simply absent,
// never a nil entry. The pool does not evict closed connections itself;
// a connection stays registered until Remove is called for its peer.
package connpool

import (
	"sync"

	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/peerconn"
)

// Pool is a concurrency-safe registry of live connections keyed by peer id.
type Pool struct {
	mu    sync.Mutex
	conns sync.Map // core.PeerID -> peerconn.Conn
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{}
}

// Get returns the connection registered for peer, if any.
func (p *Pool) Get(peer core.PeerID) (peerconn.Conn, bool) {
	v, ok := p.conns.Load(peer)
	if !ok {
		return nil, false
	}
	return v.(peerconn.Conn), true
}

// AddIfAbsent registers conn under the given peer id.
// If a connection is already registered for peer, the existing connection
// is returned and conn is not installed — callers are expected to close
// the connection they tried and lost.
func (p *Pool) AddIfAbsent(peer core.PeerID, conn peerconn.Conn) peerconn.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.conns.Load(peer); ok {
		return existing.(peerconn.Conn)
	}
	p.conns.Store(peer, conn)
	return conn
}

// Remove evicts the connection registered for peer, if any.
func (p *Pool) Remove(peer core.PeerID) {
	p.conns.Delete(peer)
}

// Size returns the number of connections currently registered.
func (p *Pool) Size() int {
	n := 0
	p.conns.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Peers returns a snapshot of every peer id currently registered.
func (p *Pool) Peers() []core.PeerID {
	var peers []core.PeerID
	p.conns.Range(func(k, _ interface{}) bool {
		peers = append(peers, k.(core.PeerID))
		return true
	})
	return peers
}
