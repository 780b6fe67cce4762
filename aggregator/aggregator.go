// Package aggregator folds per-connection download/upload counters
// into torrent-wide totals, preserving contributions from peers after
// they disconnect. It is independent of the dispatcher: it discovers
// disconnects by diffing the worker's live peer set against its own
// last-seen snapshot, rather than being notified of connection teardown.
package aggregator

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/worker"
)

type amounts struct {
	downloaded uint64
	uploaded   uint64
}

// Worker is the subset of worker.Worker the aggregator samples.
type Worker interface {
	Peers() []core.PeerID
	ConnectionState(peer core.PeerID) (*worker.ConnectionState, bool)
}

// Aggregator folds live per-peer counters with accumulated totals from
// peers that have since disconnected. Safe for concurrent use from any
// goroutine.
type Aggregator struct {
	w          Worker
	descriptor *worker.TorrentDescriptor

	mu     sync.Mutex
	recent map[core.PeerID]amounts

	disconnectedDown *atomic.Uint64
	disconnectedUp   *atomic.Uint64
}

// New creates an Aggregator sampling w. descriptor may be nil before
// the torrent's metadata is known, in which case PiecesTotal and
// PiecesRemaining report the placeholder value of 1.
func New(w Worker, descriptor *worker.TorrentDescriptor) *Aggregator {
	return &Aggregator{
		w:                w,
		descriptor:       descriptor,
		recent:           make(map[core.PeerID]amounts),
		disconnectedDown: atomic.NewUint64(0),
		disconnectedUp:   atomic.NewUint64(0),
	}
}

// SetDescriptor installs the torrent's piece-layout descriptor once it
// becomes known (e.g. after metadata resolution completes).
func (a *Aggregator) SetDescriptor(descriptor *worker.TorrentDescriptor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.descriptor = descriptor
}

// PiecesTotal returns the torrent's total piece count, or 1 if no
// descriptor has been set yet.
func (a *Aggregator) PiecesTotal() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.descriptor == nil {
		return 1
	}
	return a.descriptor.PiecesTotal
}

// PiecesRemaining returns the torrent's remaining piece count, or 1 if
// no descriptor has been set yet.
func (a *Aggregator) PiecesRemaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.descriptor == nil {
		return 1
	}
	return a.descriptor.PiecesTotal - a.descriptor.PiecesComplete
}

// Downloaded returns cumulative bytes downloaded on this torrent since
// session start, across both connected and disconnected peers.
func (a *Aggregator) Downloaded() uint64 {
	return a.fold(func(am amounts) uint64 { return am.downloaded }, a.disconnectedDown)
}

// Uploaded returns cumulative bytes uploaded on this torrent since
// session start, across both connected and disconnected peers.
func (a *Aggregator) Uploaded() uint64 {
	return a.fold(func(am amounts) uint64 { return am.uploaded }, a.disconnectedUp)
}

// ConnectedPeers returns an immutable snapshot of the worker's current
// peer set.
func (a *Aggregator) ConnectedPeers() []core.PeerID {
	return a.w.Peers()
}

// fold runs the counter-folding algorithm described in the package
// doc: it overwrites recent with every currently-live peer's counters,
// migrates any peer no longer live into the disconnected accumulator,
// and returns the sum of one axis (selected by axis) plus that
// accumulator's value. Both Downloaded and Uploaded route through this
// same mutex-guarded procedure so that a peer can never be seen as
// live by one and disconnected by the other.
func (a *Aggregator) fold(axis func(amounts) uint64, disconnectedAccum *atomic.Uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	live := make(map[core.PeerID]amounts)
	for _, peer := range a.w.Peers() {
		state, ok := a.w.ConnectionState(peer)
		if !ok {
			continue
		}
		live[peer] = amounts{downloaded: state.Downloaded(), uploaded: state.Uploaded()}
	}

	for peer, am := range live {
		a.recent[peer] = am
	}

	for peer, am := range a.recent {
		if _, stillLive := live[peer]; stillLive {
			continue
		}
		a.disconnectedDown.Add(am.downloaded)
		a.disconnectedUp.Add(am.uploaded)
		delete(a.recent, peer)
	}

	var total uint64
	for _, am := range a.recent {
		total += axis(am)
	}
	return total + disconnectedAccum.Load()
}
