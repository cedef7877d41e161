// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(&cfg))
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Device)
	assert.Equal(t, 57600, cfg.Serial.Speed)
	assert.Equal(t, Pins{Atn: 5, Clock: 4, Data: 3, Reset: 7, SrqIn: 6}, cfg.Pins)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uno2iec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serial:
  device: /dev/ttyACM0
  speed: 115200
pins:
  atn: 8
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Device)
	assert.Equal(t, 115200, cfg.Serial.Speed)
	// Overridden key.
	assert.Equal(t, 8, cfg.Pins.Atn)
	// Untouched keys keep their defaults.
	assert.Equal(t, 4, cfg.Pins.Clock)
	assert.Equal(t, 9, cfg.Target.Device)
	require.NoError(t, Validate(&cfg))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty device", func(c *Config) { c.Serial.Device = "" }},
		{"negative speed", func(c *Config) { c.Serial.Speed = -1 }},
		{"pin collision", func(c *Config) { c.Pins.Atn = c.Pins.Clock }},
		{"pin on serial line", func(c *Config) { c.Pins.Data = 1 }},
		{"pin out of range", func(c *Config) { c.Pins.Reset = 14 }},
		{"target too low", func(c *Config) { c.Target.Device = 7 }},
		{"target too high", func(c *Config) { c.Target.Device = 16 }},
	} {
		cfg := Default()
		tc.mutate(&cfg)
		assert.Error(t, Validate(&cfg), tc.name)
	}
}
