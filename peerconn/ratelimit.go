package peerconn

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torrentkit/peercore/core"
	"github.com/torrentkit/peercore/message"
)

// RateLimitConfig configures egress/ingress bandwidth shaping for a
// RateLimitedConn. Adapted from the teacher's conn/bandwidth.Limiter,
// which used the same token-bucket-per-direction shape.
type RateLimitConfig struct {
	EgressBytesPerSec  int `yaml:"egress_bytes_per_sec"`
	IngressBytesPerSec int `yaml:"ingress_bytes_per_sec"`
	Disable            bool `yaml:"disable"`
}

func (c RateLimitConfig) applyDefaults() RateLimitConfig {
	if c.EgressBytesPerSec == 0 {
		c.EgressBytesPerSec = 25 * 1024 * 1024
	}
	if c.IngressBytesPerSec == 0 {
		c.IngressBytesPerSec = 37 * 1024 * 1024
	}
	return c
}

// RateLimitedConn wraps a Conn, throttling PostMessage (egress) and
// ReadMessage (ingress) through token-bucket limiters sized in bytes.
// The dispatch loop is single-threaded and cooperative, so unlike the
// teacher's goroutine-per-peer conn/bandwidth.Limiter, neither call may
// block waiting for budget: a message that doesn't fit the current
// burst is rejected immediately rather than slept on.
type RateLimitedConn struct {
	Conn
	config  RateLimitConfig
	egress  *rate.Limiter
	ingress *rate.Limiter
	logger  *zap.SugaredLogger
}

// NewRateLimitedConn wraps conn with bandwidth shaping per config.
func NewRateLimitedConn(conn Conn, config RateLimitConfig, logger *zap.SugaredLogger) *RateLimitedConn {
	config = config.applyDefaults()
	return &RateLimitedConn{
		Conn:    conn,
		config:  config,
		egress:  rate.NewLimiter(rate.Limit(config.EgressBytesPerSec), config.EgressBytesPerSec),
		ingress: rate.NewLimiter(rate.Limit(config.IngressBytesPerSec), config.IngressBytesPerSec),
		logger:  logger,
	}
}

func messageSize(m message.Message) int {
	switch m.Kind {
	case message.Piece:
		return len(m.Piece.Block) + 13
	case message.Extension:
		return len(m.Extension.Payload) + 6
	default:
		return 5
	}
}

// allow reports whether n bytes may cross limiter's direction right
// now. It never blocks: a budget shortfall is reported as false
// instead of being waited out, since the caller runs on the shared
// dispatch loop goroutine.
func (c *RateLimitedConn) allow(limiter *rate.Limiter, n int) bool {
	if c.config.Disable {
		return true
	}
	return limiter.AllowN(time.Now(), n)
}

// PostMessage posts m only if egress bandwidth for it is available
// right now. If the budget is exhausted it returns an error instead of
// waiting for it to refill, so the dispatch loop's existing
// log-and-continue handling of post failures applies unchanged.
func (c *RateLimitedConn) PostMessage(m message.Message) error {
	n := messageSize(m)
	if !c.allow(c.egress, n) {
		return fmt.Errorf("egress rate limit exceeded for %d byte message", n)
	}
	return c.Conn.PostMessage(m)
}

// ReadMessage reads the next message and admits it only if ingress
// bandwidth is available right now. A message over budget is dropped
// and logged rather than held, since waiting for refill would stall
// the dispatch loop for every other peer.
func (c *RateLimitedConn) ReadMessage() (message.Message, bool, error) {
	m, ok, err := c.Conn.ReadMessage()
	if err != nil || !ok {
		return m, ok, err
	}
	n := messageSize(m)
	if !c.allow(c.ingress, n) {
		c.logger.Warnw("Dropping message exceeding ingress rate limit", "bytes", n)
		return message.Message{}, false, nil
	}
	return m, ok, nil
}

// TorrentID implements Conn.
func (c *RateLimitedConn) TorrentID() core.InfoHash {
	return c.Conn.TorrentID()
}
