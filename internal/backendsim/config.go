package backendsim

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config controls the simulator process.
type Config struct {
	ListenAddr         string `toml:"listen_addr"`
	SimIntervalSeconds int    `toml:"sim_interval_seconds"`
	LogWindow          int    `toml:"log_window"`
	FrameWindow        int    `toml:"frame_window"`
}

// DefaultConfig returns the built-in simulator settings.
func DefaultConfig() Config {
	return Config{
		ListenAddr:         ":8420",
		SimIntervalSeconds: 2,
		LogWindow:          1000,
		FrameWindow:        500,
	}
}

// LoadConfig reads a TOML config file over the defaults. A missing file
// is not an error; the defaults run as-is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the simulator cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.SimIntervalSeconds <= 0 {
		return fmt.Errorf("sim_interval_seconds must be positive")
	}
	if c.LogWindow <= 0 || c.FrameWindow <= 0 {
		return fmt.Errorf("stream windows must be positive")
	}
	return nil
}
