// Package dispatch implements the single-threaded cooperative dispatch
// loop that reads messages off peer connections and fans them out to
// registered consumers, and polls registered suppliers for outbound
// messages to post. See loopcontrol for the idle-backoff it drives.
package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/lifecycle"
	"github.com/torrentkit/peercore/loopcontrol"
	"github.com/torrentkit/peercore/peerconn"
)

// ConnPool resolves a peer to its live connection. Satisfied by
// *connpool.Pool.
type ConnPool interface {
	Get(peer core.PeerID) (peerconn.Conn, bool)
}

// TorrentRegistry reports whether a torrent is currently supported and
// active. Satisfied by *torrentreg.Registry.
type TorrentRegistry interface {
	IsSupportedAndActive(h core.InfoHash) bool
}

// Dispatcher owns the per-peer consumer/supplier registries and runs
// the single dispatch loop driving them. Safe for concurrent
// AddConsumer/AddSupplier calls while the loop is running.
type Dispatcher struct {
	config    Config
	stats     tally.Scope
	clk       clock.Clock
	pool      ConnPool
	registry  TorrentRegistry
	logger    *zap.SugaredLogger
	loopCtrl  *loopcontrol.LoopControl

	consumers consumerRegistry
	suppliers supplierRegistry

	startOnce sync.Once
	stopOnce  sync.Once
	shutdown  int32
	done      chan struct{}
}

// New creates a Dispatcher. The loop does not run until Start is called.
func New(
	config Config,
	stats tally.Scope,
	clk clock.Clock,
	pool ConnPool,
	registry TorrentRegistry,
	logger *zap.SugaredLogger,
) *Dispatcher {
	config = config.applyDefaults()

	stats = stats.Tagged(map[string]string{
		"module": "dispatch",
	})

	return &Dispatcher{
		config:   config,
		stats:    stats,
		clk:      clk,
		pool:     pool,
		registry: registry,
		logger:   logger,
		loopCtrl: loopcontrol.New(config.LoopControl, clk),
		done:     make(chan struct{}),
	}
}

// AddConsumer registers consumer to receive every subsequent message
// decoded from peer. Safe to call from any goroutine, including while
// the loop is running.
func (d *Dispatcher) AddConsumer(peer core.PeerID, consumer Consumer) {
	d.consumers.add(peer, consumer)
}

// AddSupplier registers supplier to be polled once per iteration while
// peer is connected. Safe to call from any goroutine.
func (d *Dispatcher) AddSupplier(peer core.PeerID, supplier Supplier) {
	d.suppliers.add(peer, supplier)
}

// Start launches the dispatch loop goroutine. Idempotent.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

// Shutdown signals the loop to exit and blocks until it has. Idempotent.
func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(func() {
		atomic.StoreInt32(&d.shutdown, 1)
		d.loopCtrl.Shutdown()
	})
	<-d.done
}

// Bind registers the dispatch loop's start and shutdown with h: the
// loop goroutine launches on the startup hook, and the shutdown cleanup
// calls Shutdown, which cuts any idle sleep short and waits for the loop
// to exit after its current iteration.
func (d *Dispatcher) Bind(h *lifecycle.Handler) {
	h.OnStartup("dispatch-loop", d.Start)
	h.AddCleanup(func() error {
		d.Shutdown()
		return nil
	})
}

func (d *Dispatcher) isShutdown() bool {
	return atomic.LoadInt32(&d.shutdown) == 1
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for !d.isShutdown() {
		d.runIteration()

		if err := d.loopCtrl.IterationFinished(); err != nil {
			if err != loopcontrol.ErrShutdown {
				d.logger.Errorw("Dispatch loop terminating on fatal sleep failure", "error", err)
			}
			return
		}
	}
}

func (d *Dispatcher) runIteration() {
	d.runInbound()
	d.runOutbound()
}

// resolve returns the connection for peer if it is present, open, and
// belongs to a currently supported-and-active torrent. Otherwise it
// returns (nil, false) and the peer is skipped entirely this iteration.
func (d *Dispatcher) resolve(peer core.PeerID) (peerconn.Conn, bool) {
	conn, ok := d.pool.Get(peer)
	if !ok || conn.IsClosed() {
		return nil, false
	}
	if !d.registry.IsSupportedAndActive(conn.TorrentID()) {
		return nil, false
	}
	return conn, true
}

func (d *Dispatcher) runInbound() {
	d.consumers.rangeEntries(func(peer core.PeerID, consumers []Consumer) {
		conn, ok := d.resolve(peer)
		if !ok {
			return
		}
		d.drain(peer, conn, consumers)
	})
}

func (d *Dispatcher) drain(peer core.PeerID, conn peerconn.Conn, consumers []Consumer) {
	for {
		m, ok, err := conn.ReadMessage()
		if err != nil {
			d.logger.Errorw("Failed to read message from peer", "peer", peer, "error", err)
			d.stats.Counter("read_errors").Inc(1)
			return
		}
		if !ok {
			return
		}

		d.loopCtrl.IncrementProcessed()
		d.stats.Counter("messages_delivered").Inc(1)

		for _, c := range consumers {
			if cerr := c(m); cerr != nil {
				d.logger.Warnw("Consumer failed to process message", "peer", peer, "error", cerr)
				d.stats.Counter("consumer_errors").Inc(1)
			}
		}
	}
}

func (d *Dispatcher) runOutbound() {
	d.suppliers.rangeEntries(func(peer core.PeerID, suppliers []Supplier) {
		conn, ok := d.resolve(peer)
		if !ok {
			return
		}
		for _, s := range suppliers {
			d.supply(peer, conn, s)
		}
	})
}

func (d *Dispatcher) supply(peer core.PeerID, conn peerconn.Conn, supplier Supplier) {
	m, ok, err := supplier()
	if err != nil {
		d.logger.Warnw("Supplier failed to produce message", "peer", peer, "error", err)
		d.stats.Counter("supplier_errors").Inc(1)
		return
	}
	if !ok {
		return
	}

	d.loopCtrl.IncrementProcessed()
	d.stats.Counter("messages_posted").Inc(1)

	if err := conn.PostMessage(m); err != nil {
		d.logger.Errorw("Failed to post message to peer", "peer", peer, "error", err)
		d.stats.Counter("post_errors").Inc(1)
	}
}
