// Package config loads the tester's YAML configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/grid-telemetry/dnp3-tester/internal/models"
)

// Config is the tester-side configuration. The point table itself stays a
// separate JSON document (see LoadPointTable).
type Config struct {
	Backend struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"backend"`

	Polling struct {
		MasterIntervalSeconds     int `yaml:"master_interval_seconds"`
		OutstationIntervalSeconds int `yaml:"outstation_interval_seconds"`
	} `yaml:"polling"`

	Streams struct {
		LogRetention   int `yaml:"log_retention"`
		FrameRetention int `yaml:"frame_retention"`
	} `yaml:"streams"`

	DefaultRole    string `yaml:"default_role"`
	PointTablePath string `yaml:"point_table_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Backend.URL = "http://127.0.0.1:8420"
	cfg.Backend.TimeoutSeconds = 10
	cfg.Polling.MasterIntervalSeconds = 5
	cfg.Polling.OutstationIntervalSeconds = 1
	cfg.Streams.LogRetention = 1000
	cfg.Streams.FrameRetention = 500
	cfg.DefaultRole = string(models.RoleOutstation)
	cfg.PointTablePath = "default_config.json"
	return cfg
}

// Load reads the YAML config at path, filling gaps with defaults. A
// missing file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the tester cannot run with.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url must not be empty")
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be positive")
	}
	if c.Polling.MasterIntervalSeconds <= 0 || c.Polling.OutstationIntervalSeconds <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	if c.Streams.LogRetention <= 0 || c.Streams.FrameRetention <= 0 {
		return fmt.Errorf("stream retention caps must be positive")
	}
	switch models.Role(c.DefaultRole) {
	case models.RoleMaster, models.RoleOutstation:
	default:
		return fmt.Errorf("default_role must be master or outstation")
	}
	return nil
}

// BackendTimeout returns the HTTP timeout as a duration.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// MasterInterval is the default master read-then-fetch period.
func (c *Config) MasterInterval() time.Duration {
	return time.Duration(c.Polling.MasterIntervalSeconds) * time.Second
}

// OutstationInterval is the fixed outstation fetch period.
func (c *Config) OutstationInterval() time.Duration {
	return time.Duration(c.Polling.OutstationIntervalSeconds) * time.Second
}

// LoadPointTable reads a JSON point-table document.
func LoadPointTable(path string) (models.DeviceConfiguration, error) {
	var cfg models.DeviceConfiguration
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read point table: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse point table: %w", err)
	}
	return cfg, nil
}
