package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8420", cfg.Backend.URL)
	assert.Equal(t, 5*time.Second, cfg.MasterInterval())
	assert.Equal(t, time.Second, cfg.OutstationInterval())
	assert.Equal(t, 1000, cfg.Streams.LogRetention)
	assert.Equal(t, 500, cfg.Streams.FrameRetention)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  url: http://10.0.0.5:9000
  timeout_seconds: 3
polling:
  master_interval_seconds: 10
  outstation_interval_seconds: 2
streams:
  log_retention: 50
  frame_retention: 25
default_role: master
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:9000", cfg.Backend.URL)
	assert.Equal(t, 3*time.Second, cfg.BackendTimeout())
	assert.Equal(t, 10*time.Second, cfg.MasterInterval())
	assert.Equal(t, 50, cfg.Streams.LogRetention)
	assert.Equal(t, "master", cfg.DefaultRole)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_role: observer
`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadPointTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "name": "Feeder 12",
  "binary_outputs": [{"index": 0, "name": "Breaker"}],
  "analog_inputs": [{"index": 0, "name": "Voltage", "unit": "kV"}]
}`), 0644))

	table, err := LoadPointTable(path)
	require.NoError(t, err)
	require.Len(t, table.BinaryOutputs, 1)
	assert.Equal(t, "Breaker", table.BinaryOutputs[0].Name)
	require.NotNil(t, table.AnalogInputs[0].Unit)
	assert.Equal(t, "kV", *table.AnalogInputs[0].Unit)
	assert.False(t, table.Empty())

	points := table.Points()
	require.Len(t, points, 2)
}

func TestLoadPointTableMissing(t *testing.T) {
	_, err := LoadPointTable(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
