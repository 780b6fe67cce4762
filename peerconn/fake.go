package peerconn

import (
	"errors"
	"sync"

	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/message"
)

// ErrClosed is returned by PostMessage on a closed FakeConn.
var ErrClosed = errors.New("connection closed")

// FakeConn is a testing double for Conn. Messages queued with Enqueue are
// returned one at a time by ReadMessage in FIFO order; once the queue is
// drained, ReadMessage reports no message available rather than blocking.
type FakeConn struct {
	mu        sync.Mutex
	torrentID core.InfoHash
	inbound   []message.Message
	readErr   error
	sent      []message.Message
	postErr   error
	closed    bool
}

// NewFakeConn returns a FakeConn for torrentID.
func NewFakeConn(torrentID core.InfoHash) *FakeConn {
	return &FakeConn{torrentID: torrentID}
}

// Enqueue appends messages to the inbound queue.
func (c *FakeConn) Enqueue(msgs ...message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbound = append(c.inbound, msgs...)
}

// FailNextRead causes the next ReadMessage call to return err instead of
// draining the queue. Cleared after it fires once.
func (c *FakeConn) FailNextRead(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

// FailPost causes every subsequent PostMessage call to return err.
func (c *FakeConn) FailPost(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postErr = err
}

// ReadMessage implements Conn.
func (c *FakeConn) ReadMessage() (message.Message, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readErr != nil {
		err := c.readErr
		c.readErr = nil
		return message.Message{}, false, err
	}
	if len(c.inbound) == 0 {
		return message.Message{}, false, nil
	}
	m := c.inbound[0]
	c.inbound = c.inbound[1:]
	return m, true, nil
}

// PostMessage implements Conn.
func (c *FakeConn) PostMessage(m message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.postErr != nil {
		return c.postErr
	}
	c.sent = append(c.sent, m)
	return nil
}

// IsClosed implements Conn.
func (c *FakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// TorrentID implements Conn.
func (c *FakeConn) TorrentID() core.InfoHash {
	return c.torrentID
}

// Close marks the connection closed.
func (c *FakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Sent returns a copy of every message posted so far.
func (c *FakeConn) Sent() []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]message.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// Pending returns how many inbound messages remain queued.
func (c *FakeConn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inbound)
}
