package loopcontrol

import "time"

// Config configures the ceiling on adaptive idle sleep.
type Config struct {
	// MaxSleep caps current_sleep_ms; it is the only tunable the spec
	// recognises (max_message_processing_interval).
	MaxSleep time.Duration `yaml:"max_message_processing_interval"`
}

func (c Config) applyDefaults() Config {
	if c.MaxSleep == 0 {
		c.MaxSleep = 5 * time.Second
	}
	return c
}
