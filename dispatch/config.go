package dispatch

import "github.com/torrentkit/peercore/loopcontrol"

// Config defines the configuration for the message dispatch loop.
type Config struct {
	LoopControl loopcontrol.Config `yaml:"loop_control"`
}

func (c Config) applyDefaults() Config {
	return c
}
