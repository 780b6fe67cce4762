package peerconn

// Config aggregates the peerconn-level knobs wired into a torrent's
// connections: currently just bandwidth shaping. Grounded on the
// teacher's conn/config.go Config+applyDefaults shape.
type Config struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

func (c Config) applyDefaults() Config {
	c.RateLimit = c.RateLimit.applyDefaults()
	return c
}
