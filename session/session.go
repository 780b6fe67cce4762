// Package session wires one Dispatcher, Worker, Aggregator, connection
// pool, and torrent registry entry together for a single torrent,
// mirroring the teacher's per-torrent control object shape.
package session

import (
	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/torrentkit/peercore/aggregator"
	"github.com/torrentkit/peercore/config"
	"github.com/torrentkit/peercore/connpool"
	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/dispatch"
	"github.com/torrentkit/peercore/lifecycle"
	"github.com/torrentkit/peercore/peerconn"
	"github.com/torrentkit/peercore/torrentreg"
	"github.com/torrentkit/peercore/worker"
)

// Session bundles the per-torrent components driving message exchange
// with remote peers for one torrent.
type Session struct {
	TorrentID  core.InfoHash
	Dispatcher *dispatch.Dispatcher
	Worker     *worker.Worker
	Aggregator *aggregator.Aggregator
	Pool       *connpool.Pool
	Registry   *torrentreg.Registry
}

// New constructs a Session for torrentID with numPieces pieces,
// registers torrentID as supported and active, and binds the
// dispatcher's loop to h's startup/shutdown hooks.
func New(
	cfg config.Config,
	stats tally.Scope,
	clk clock.Clock,
	torrentID core.InfoHash,
	numPieces uint,
	logger *zap.SugaredLogger,
	h *lifecycle.Handler,
) *Session {
	pool := connpool.New()
	registry := torrentreg.New()
	registry.Add(torrentID)

	w := worker.New(numPieces)
	agg := aggregator.New(w, nil)

	d := dispatch.New(cfg.Dispatch, stats, clk, pool, registry, logger)
	d.Bind(h)

	return &Session{
		TorrentID:  torrentID,
		Dispatcher: d,
		Worker:     w,
		Aggregator: agg,
		Pool:       pool,
		Registry:   registry,
	}
}

// AddPeer wires peer's connection into the session: registers it in
// the pool, rate-limits it per rateLimit, creates its worker state, and adds
// its dispatch consumer/supplier pair.
func (s *Session) AddPeer(peer core.PeerID, conn peerconn.Conn, rateLimit peerconn.RateLimitConfig, logger *zap.SugaredLogger) peerconn.Conn {
	limited := peerconn.NewRateLimitedConn(conn, rateLimit, logger)
	installed := s.Pool.AddIfAbsent(peer, limited)

	s.Worker.AddPeer(peer)
	s.Dispatcher.AddConsumer(peer, s.Worker.Consumer(peer))
	s.Dispatcher.AddSupplier(peer, s.Worker.Supplier(peer))

	return installed
}

// RemovePeer evicts peer from the pool and the worker's live set. The
// dispatcher's registries retain peer's now-inert consumer/supplier
// entries for the lifetime of the process, per the core's no-remove
// contract; they simply stop being invoked once resolve fails to find
// a connection for peer.
func (s *Session) RemovePeer(peer core.PeerID) {
	s.Pool.Remove(peer)
	s.Worker.RemovePeer(peer)
}
