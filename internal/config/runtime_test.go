// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\ndiagnostics_enabled: true\n"), 0o644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.DiagnosticsEnabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.DiagnosticsAddr) // untouched default
}

func TestValidate_RejectsOutOfRangeSamplingRate(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	cfg.TelemetrySamplingRate = 1.5
	assert.Error(t, Validate(cfg))

	cfg.TelemetrySamplingRate = 0.5
	assert.NoError(t, Validate(cfg))
}

func TestConfigHolder_ReloadKeepsOldOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telemetry_sampling_rate: 2.0\n"), 0o644))

	holder := NewConfigHolder(DefaultRuntimeConfig(), NewLoader(path), path)
	err := holder.Reload(context.Background())
	assert.Error(t, err)
	assert.Equal(t, DefaultRuntimeConfig(), holder.Get())
}

func TestConfigHolder_ReloadSwapsOnValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runtime.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o644))

	holder := NewConfigHolder(DefaultRuntimeConfig(), NewLoader(path), path)
	require.NoError(t, holder.Reload(context.Background()))

	assert.Equal(t, "warn", holder.Get().LogLevel)
}
