// Package worker tracks per-peer exchange state for one torrent: the
// live peer set, each peer's running transfer counters and remote
// bitfield, and a small outbound queue a caller can enqueue messages
// onto for the dispatcher's supplier side to drain.
package worker

import (
	"sync"

	"github.com/willf/bitset"
	"go.uber.org/atomic"

	"github.com/torrentkit/peercore/message"
)

// ConnectionState is the per-peer exchange state the session
// aggregator reads two counters from. Counters are monotonic for the
// lifetime of the connection; they are never reset or decremented.
type ConnectionState struct {
	downloaded *atomic.Uint64
	uploaded   *atomic.Uint64

	mu       sync.Mutex
	bitfield *bitset.BitSet
}

// NewConnectionState returns a ConnectionState with a bitfield sized
// for numPieces, all unset.
func NewConnectionState(numPieces uint) *ConnectionState {
	return &ConnectionState{
		downloaded: atomic.NewUint64(0),
		uploaded:   atomic.NewUint64(0),
		bitfield:   bitset.New(numPieces),
	}
}

// Downloaded returns the running total of bytes downloaded from this peer.
func (s *ConnectionState) Downloaded() uint64 {
	return s.downloaded.Load()
}

// Uploaded returns the running total of bytes uploaded to this peer.
func (s *ConnectionState) Uploaded() uint64 {
	return s.uploaded.Load()
}

// AddDownloaded adds n bytes to the running download total.
func (s *ConnectionState) AddDownloaded(n uint64) {
	s.downloaded.Add(n)
}

// AddUploaded adds n bytes to the running upload total.
func (s *ConnectionState) AddUploaded(n uint64) {
	s.uploaded.Add(n)
}

// SetHave marks piece index as present in the remote peer's bitfield.
func (s *ConnectionState) SetHave(index uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bitfield.Set(index)
}

// SetBitfield replaces the remote peer's bitfield wholesale, as
// received in a BitfieldMessage.
func (s *ConnectionState) SetBitfield(b *bitset.BitSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bitfield = b
}

// HasPiece reports whether the remote peer is known to have index.
func (s *ConnectionState) HasPiece(index uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bitfield.Test(index)
}

// HandleMessage updates counters and bitfield state from an inbound
// message. It never fails: an unrecognised kind is simply ignored, and
// every consumer the worker hands out shares this logic.
func (s *ConnectionState) HandleMessage(m message.Message) error {
	switch m.Kind {
	case message.Piece:
		s.AddDownloaded(uint64(len(m.Piece.Block)))
	case message.Have:
		s.SetHave(uint(m.Have.Index))
	case message.Bitfield:
		s.SetBitfield(m.Bitfield.Bits)
	}
	return nil
}
