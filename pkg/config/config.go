// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

// Package config holds the host-side bridge configuration: the serial
// device, its speed, the IEC line-to-pin assignment communicated to the
// bridge during the handshake, and the default target device.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Pins   Pins         `yaml:"pins"`
	Target TargetConfig `yaml:"target"`
}

type SerialConfig struct {
	Device string `yaml:"device"`
	Speed  int    `yaml:"speed"`
}

// Pins maps the IEC bus lines to bridge pin numbers. The numbers are
// sent verbatim in the handshake reply; the defaults match the bridge
// firmware.
type Pins struct {
	Atn   int `yaml:"atn"`
	Clock int `yaml:"clock"`
	Data  int `yaml:"data"`
	Reset int `yaml:"reset"`
	SrqIn int `yaml:"srq_in"`
}

type TargetConfig struct {
	Device int `yaml:"device"`
}

// Default returns the built-in configuration, matching the defaults of
// the bridge firmware.
func Default() Config {
	return Config{
		Serial: SerialConfig{Device: "/dev/ttyUSB0", Speed: 57600},
		Pins:   Pins{Atn: 5, Clock: 4, Data: 3, Reset: 7, SrqIn: 6},
		Target: TargetConfig{Device: 9},
	}
}

// Load reads a yaml configuration file on top of the defaults. Keys not
// present in the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks configuration correctness. It does not mutate the
// configuration.
func Validate(cfg *Config) error {
	if cfg.Serial.Device == "" {
		return fmt.Errorf("serial device must not be empty")
	}
	if cfg.Serial.Speed < 0 {
		return fmt.Errorf("serial speed must not be negative")
	}
	pins := map[string]int{
		"atn":    cfg.Pins.Atn,
		"clock":  cfg.Pins.Clock,
		"data":   cfg.Pins.Data,
		"reset":  cfg.Pins.Reset,
		"srq_in": cfg.Pins.SrqIn,
	}
	used := make(map[int]string)
	for name, pin := range pins {
		// Digital pins 0 and 1 carry the serial line itself.
		if pin < 2 || pin > 13 {
			return fmt.Errorf("pin %q out of range: %d", name, pin)
		}
		if prev, ok := used[pin]; ok {
			return fmt.Errorf("pin %d assigned to both %q and %q", pin, prev, name)
		}
		used[pin] = name
	}
	if cfg.Target.Device < 8 || cfg.Target.Device > 15 {
		return fmt.Errorf("target device out of range: %d", cfg.Target.Device)
	}
	return nil
}
