package connpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/peerconn"
)

func TestPoolAddIfAbsent(t *testing.T) {
	require := require.New(t)

	pool := New()
	peer := core.PeerIDFixture()
	torrent := core.InfoHashFixture()

	first := peerconn.NewFakeConn(torrent)
	got := pool.AddIfAbsent(peer, first)
	require.Equal(first, got)
	require.Equal(1, pool.Size())

	second := peerconn.NewFakeConn(torrent)
	got = pool.AddIfAbsent(peer, second)
	require.Equal(first, got, "AddIfAbsent must not replace an existing connection")
	require.Equal(1, pool.Size())
}

func TestPoolGetMissing(t *testing.T) {
	require := require.New(t)

	pool := New()
	_, ok := pool.Get(core.PeerIDFixture())
	require.False(ok)
}

func TestPoolRemove(t *testing.T) {
	require := require.New(t)

	pool := New()
	peer := core.PeerIDFixture()
	conn := peerconn.NewFakeConn(core.InfoHashFixture())
	pool.AddIfAbsent(peer, conn)
	require.Equal(1, pool.Size())

	pool.Remove(peer)
	require.Equal(0, pool.Size())
	_, ok := pool.Get(peer)
	require.False(ok)
}

func TestPoolPeersSnapshot(t *testing.T) {
	require := require.New(t)

	pool := New()
	torrent := core.InfoHashFixture()
	p1, p2 := core.PeerIDFixture(), core.PeerIDFixture()
	pool.AddIfAbsent(p1, peerconn.NewFakeConn(torrent))
	pool.AddIfAbsent(p2, peerconn.NewFakeConn(torrent))

	require.ElementsMatch([]core.PeerID{p1, p2}, pool.Peers())
}
