// Package peerconn defines the PeerConnection contract the dispatch core
// drives (spec.md §3), plus a FakeConn test double and a bandwidth-limited
// decorator adapted from the teacher's conn/bandwidth.Limiter.
package peerconn

import (
	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/message"
)

// Conn is the PeerConnection contract: a bidirectional, non-blocking
// message channel to one peer. Implementations must make ReadMessage
// safe to call repeatedly without blocking on the network.
type Conn interface {
	// ReadMessage returns the next buffered message, if any. The bool
	// return is false (with a nil error) when nothing is currently
	// buffered; it is never used to signal failure.
	ReadMessage() (message.Message, bool, error)

	// PostMessage sends m to the peer.
	PostMessage(m message.Message) error

	// IsClosed reports whether the connection has been torn down.
	IsClosed() bool

	// TorrentID identifies which torrent this connection belongs to.
	TorrentID() core.InfoHash
}
