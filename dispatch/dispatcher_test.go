package dispatch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/torrentkit/peercore/connpool"
	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/loopcontrol"
	"github.com/torrentkit/peercore/message"
	"github.com/torrentkit/peercore/peerconn"
	"github.com/torrentkit/peercore/torrentreg"
)

type testFixture struct {
	dispatcher *Dispatcher
	pool       *connpool.Pool
	registry   *torrentreg.Registry
	torrent    core.InfoHash
}

func newTestFixture() *testFixture {
	pool := connpool.New()
	registry := torrentreg.New()
	torrent := core.InfoHashFixture()
	registry.Add(torrent)

	d := New(Config{}, tally.NoopScope, clock.New(), pool, registry, zap.NewNop().Sugar())

	return &testFixture{dispatcher: d, pool: pool, registry: registry, torrent: torrent}
}

func (f *testFixture) addConn(peer core.PeerID) *peerconn.FakeConn {
	conn := peerconn.NewFakeConn(f.torrent)
	f.pool.AddIfAbsent(peer, conn)
	return conn
}

func TestFanOut(t *testing.T) {
	require := require.New(t)

	f := newTestFixture()
	peer := core.PeerIDFixture()
	conn := f.addConn(peer)

	var mu sync.Mutex
	var aReceived, bReceived []message.Message
	f.dispatcher.AddConsumer(peer, func(m message.Message) error {
		mu.Lock()
		defer mu.Unlock()
		aReceived = append(aReceived, m)
		return nil
	})
	f.dispatcher.AddConsumer(peer, func(m message.Message) error {
		mu.Lock()
		defer mu.Unlock()
		bReceived = append(bReceived, m)
		return nil
	})

	m1 := message.NewHaveMessage(1)
	m2 := message.NewHaveMessage(2)
	conn.Enqueue(m1, m2)

	f.dispatcher.runIteration()

	require.Equal([]message.Message{m1, m2}, aReceived)
	require.Equal([]message.Message{m1, m2}, bReceived)
	require.Equal(0, conn.Pending())
}

func TestConsumerFaultContainment(t *testing.T) {
	require := require.New(t)

	f := newTestFixture()
	peer := core.PeerIDFixture()
	conn := f.addConn(peer)

	var mu sync.Mutex
	var bReceived []message.Message
	f.dispatcher.AddConsumer(peer, func(m message.Message) error {
		return errors.New("boom")
	})
	f.dispatcher.AddConsumer(peer, func(m message.Message) error {
		mu.Lock()
		defer mu.Unlock()
		bReceived = append(bReceived, m)
		return nil
	})

	m1 := message.NewHaveMessage(1)
	conn.Enqueue(m1)
	f.dispatcher.runIteration()
	require.Equal([]message.Message{m1}, bReceived)

	m2 := message.NewHaveMessage(2)
	conn.Enqueue(m2)
	f.dispatcher.runIteration()
	require.Equal([]message.Message{m1, m2}, bReceived)
}

func TestInactiveTorrentSkipped(t *testing.T) {
	require := require.New(t)

	f := newTestFixture()
	f.registry.Remove(f.torrent)

	peer := core.PeerIDFixture()
	conn := f.addConn(peer)
	conn.Enqueue(message.NewHaveMessage(1))

	invoked := false
	f.dispatcher.AddConsumer(peer, func(m message.Message) error {
		invoked = true
		return nil
	})

	f.dispatcher.runIteration()

	require.False(invoked)
	require.Equal(1, conn.Pending(), "inactive-torrent connection must never be drained")
}

func TestClosedConnectionSkipped(t *testing.T) {
	require := require.New(t)

	f := newTestFixture()
	peer := core.PeerIDFixture()
	conn := f.addConn(peer)
	conn.Enqueue(message.NewHaveMessage(1))
	conn.Close()

	invoked := false
	f.dispatcher.AddConsumer(peer, func(m message.Message) error {
		invoked = true
		return nil
	})

	f.dispatcher.runIteration()
	require.False(invoked)
}

func TestOutboundSupplierPostsMessage(t *testing.T) {
	require := require.New(t)

	f := newTestFixture()
	peer := core.PeerIDFixture()
	conn := f.addConn(peer)

	m := message.NewUnchokeMessage()
	polled := 0
	f.dispatcher.AddSupplier(peer, func() (message.Message, bool, error) {
		polled++
		if polled > 1 {
			return message.Message{}, false, nil
		}
		return m, true, nil
	})

	f.dispatcher.runIteration()

	require.Equal(1, len(conn.Sent()))
	require.Equal(message.Unchoke, conn.Sent()[0].Kind)
}

func TestSupplierFaultContainment(t *testing.T) {
	require := require.New(t)

	f := newTestFixture()
	peer := core.PeerIDFixture()
	conn := f.addConn(peer)

	f.dispatcher.AddSupplier(peer, func() (message.Message, bool, error) {
		return message.Message{}, false, errors.New("boom")
	})
	f.dispatcher.AddSupplier(peer, func() (message.Message, bool, error) {
		return message.NewUnchokeMessage(), true, nil
	})

	f.dispatcher.runIteration()
	require.Equal(1, len(conn.Sent()))
}

func TestShutdownStopsLoopPromptly(t *testing.T) {
	require := require.New(t)

	mock := clock.NewMock()
	pool := connpool.New()
	registry := torrentreg.New()
	d := New(
		Config{LoopControl: loopcontrol.Config{MaxSleep: 64 * time.Millisecond}},
		tally.NoopScope, mock, pool, registry, zap.NewNop().Sugar(),
	)

	d.Start()

	done := make(chan struct{})
	go func() {
		d.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not return promptly")
	}
}
