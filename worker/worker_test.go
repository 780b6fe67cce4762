package worker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/message"
)

func TestAddPeerAndConnectionState(t *testing.T) {
	require := require.New(t)

	w := New(8)
	peer := core.PeerIDFixture()
	w.AddPeer(peer)

	state, ok := w.ConnectionState(peer)
	require.True(ok)
	require.Equal(uint64(0), state.Downloaded())
	require.ElementsMatch([]core.PeerID{peer}, w.Peers())
}

func TestRemovePeer(t *testing.T) {
	require := require.New(t)

	w := New(8)
	peer := core.PeerIDFixture()
	w.AddPeer(peer)
	w.RemovePeer(peer)

	_, ok := w.ConnectionState(peer)
	require.False(ok)
	require.Empty(w.Peers())
}

func TestConsumerUpdatesDownloadedOnPiece(t *testing.T) {
	require := require.New(t)

	w := New(8)
	peer := core.PeerIDFixture()
	w.AddPeer(peer)

	consumer := w.Consumer(peer)
	require.NoError(consumer(message.NewPieceMessage(0, 0, make([]byte, 100))))

	state, _ := w.ConnectionState(peer)
	require.Equal(uint64(100), state.Downloaded())
}

func TestConsumerUpdatesBitfieldOnHave(t *testing.T) {
	require := require.New(t)

	w := New(8)
	peer := core.PeerIDFixture()
	w.AddPeer(peer)

	consumer := w.Consumer(peer)
	require.NoError(consumer(message.NewHaveMessage(3)))

	state, _ := w.ConnectionState(peer)
	require.True(state.HasPiece(3))
	require.False(state.HasPiece(4))
}

func TestSupplierDrainsQueueAndCreditsUpload(t *testing.T) {
	require := require.New(t)

	w := New(8)
	peer := core.PeerIDFixture()
	w.AddPeer(peer)

	block := make([]byte, 64)
	w.Enqueue(peer, message.NewPieceMessage(0, 0, block))

	supplier := w.Supplier(peer)
	m, ok, err := supplier()
	require.NoError(err)
	require.True(ok)
	require.Equal(message.Piece, m.Kind)

	state, _ := w.ConnectionState(peer)
	require.Equal(uint64(64), state.Uploaded())

	_, ok, err = supplier()
	require.NoError(err)
	require.False(ok)
}

func TestConsumerOnUnknownPeerIsNoop(t *testing.T) {
	require := require.New(t)

	w := New(8)
	peer := core.PeerIDFixture()
	consumer := w.Consumer(peer)
	require.NoError(consumer(message.NewHaveMessage(0)))
}
