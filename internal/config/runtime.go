// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds ambient settings only: log level, the optional
// diagnostics HTTP surface, and telemetry sampling. It never carries any of
// the OpenKit behavioral fields in Configuration — those stay effectively
// immutable for the lifetime of the core, hot-reload notwithstanding.
type RuntimeConfig struct {
	LogLevel string `yaml:"log_level"`

	DiagnosticsEnabled bool   `yaml:"diagnostics_enabled"`
	DiagnosticsAddr    string `yaml:"diagnostics_addr"`

	TelemetryEnabled      bool    `yaml:"telemetry_enabled"`
	TelemetryExporterType string  `yaml:"telemetry_exporter_type"`
	TelemetryEndpoint     string  `yaml:"telemetry_endpoint"`
	TelemetrySamplingRate float64 `yaml:"telemetry_sampling_rate"`
}

// DefaultRuntimeConfig returns the conservative defaults used when no
// runtime config file is present.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		LogLevel:              "info",
		DiagnosticsEnabled:    false,
		DiagnosticsAddr:       "127.0.0.1:9999",
		TelemetryEnabled:      false,
		TelemetryExporterType: "grpc",
		TelemetrySamplingRate: 0,
	}
}

// Validate rejects a RuntimeConfig with an out-of-range sampling rate, so a
// bad reload never gets swapped in.
func Validate(cfg RuntimeConfig) error {
	if cfg.TelemetrySamplingRate < 0 || cfg.TelemetrySamplingRate > 1 {
		return fmt.Errorf("telemetry_sampling_rate must be within [0,1], got %f", cfg.TelemetrySamplingRate)
	}
	return nil
}

// Loader reads a RuntimeConfig from a YAML file.
type Loader struct {
	path string
}

// NewLoader returns a Loader reading from path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads and parses the YAML file, starting from DefaultRuntimeConfig
// so an incomplete file only overrides the fields it sets.
func (l *Loader) Load() (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	data, err := os.ReadFile(l.path)
	if err != nil {
		return cfg, fmt.Errorf("read runtime config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse runtime config: %w", err)
	}
	return cfg, nil
}
