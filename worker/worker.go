package worker

import (
	"sync"

	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/message"
)

// TorrentDescriptor describes a torrent's piece layout, as known once
// its metadata has been resolved. The aggregator holds it (a Worker
// never does); before it is set, the aggregator reports its
// metadata-phase placeholder.
type TorrentDescriptor struct {
	PiecesTotal    int
	PiecesComplete int
}

// Worker tracks per-peer exchange state for one torrent. It is the
// Worker collaborator the session aggregator reads the live peer set
// and per-peer counters from; it does not itself implement piece
// selection, choke algorithm, or any other download strategy.
type Worker struct {
	numPieces uint

	peers sync.Map // core.PeerID -> *ConnectionState

	mu       sync.Mutex
	outbound map[core.PeerID][]message.Message
}

// New creates a Worker whose per-peer bitfields are sized for numPieces.
func New(numPieces uint) *Worker {
	return &Worker{
		numPieces: numPieces,
		outbound:  make(map[core.PeerID][]message.Message),
	}
}

// AddPeer registers peer as live, with a fresh ConnectionState.
func (w *Worker) AddPeer(peer core.PeerID) *ConnectionState {
	state := NewConnectionState(w.numPieces)
	w.peers.Store(peer, state)
	return state
}

// RemovePeer removes peer from the live set; ConnectionState(peer)
// reports false afterwards. The aggregator is not notified: on its next
// call it moves the counters it last sampled for peer into its
// disconnected totals, so bytes added after that sample are not counted.
func (w *Worker) RemovePeer(peer core.PeerID) {
	w.peers.Delete(peer)
	w.mu.Lock()
	delete(w.outbound, peer)
	w.mu.Unlock()
}

// Peers returns an immutable snapshot of the currently live peer set.
func (w *Worker) Peers() []core.PeerID {
	var peers []core.PeerID
	w.peers.Range(func(k, _ interface{}) bool {
		peers = append(peers, k.(core.PeerID))
		return true
	})
	return peers
}

// ConnectionState returns peer's live state, if it is currently connected.
func (w *Worker) ConnectionState(peer core.PeerID) (*ConnectionState, bool) {
	v, ok := w.peers.Load(peer)
	if !ok {
		return nil, false
	}
	return v.(*ConnectionState), true
}

// Enqueue schedules m to be sent to peer the next time its supplier is
// polled. Safe to call from any goroutine.
func (w *Worker) Enqueue(peer core.PeerID, m message.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.outbound[peer] = append(w.outbound[peer], m)
}

// Consumer returns a dispatch.Consumer-shaped callback that folds
// inbound messages from peer into its ConnectionState.
func (w *Worker) Consumer(peer core.PeerID) func(message.Message) error {
	return func(m message.Message) error {
		state, ok := w.ConnectionState(peer)
		if !ok {
			return nil
		}
		return state.HandleMessage(m)
	}
}

// Supplier returns a dispatch.Supplier-shaped callback that drains
// peer's outbound queue one message at a time, crediting uploaded
// bytes for any Piece message it releases.
func (w *Worker) Supplier(peer core.PeerID) func() (message.Message, bool, error) {
	return func() (message.Message, bool, error) {
		w.mu.Lock()
		queue := w.outbound[peer]
		if len(queue) == 0 {
			w.mu.Unlock()
			return message.Message{}, false, nil
		}
		m := queue[0]
		w.outbound[peer] = queue[1:]
		w.mu.Unlock()

		if m.Kind == message.Piece {
			if state, ok := w.ConnectionState(peer); ok {
				state.AddUploaded(uint64(len(m.Piece.Block)))
			}
		}
		return m, true, nil
	}
}
