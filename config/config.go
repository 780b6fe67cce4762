// Package config loads the aggregated configuration for a peer
// messaging session from YAML, mirroring the per-package
// Config+applyDefaults idiom used throughout this module.
package config

import (
	"fmt"
	"io"
	"io/ioutil"

	"gopkg.in/yaml.v2"

	"github.com/torrentkit/peercore/dispatch"
	"github.com/torrentkit/peercore/peerconn"
)

// Config aggregates every tunable knob recognised by the peer
// messaging core.
type Config struct {
	Dispatch dispatch.Config `yaml:"dispatch"`
	PeerConn peerconn.Config `yaml:"peer_conn"`
}

// Load parses a Config from r.
func Load(r io.Reader) (Config, error) {
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %s", err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %s", err)
	}
	return c, nil
}
