// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/openkit-go/openkit/internal/log"
)

// ConfigHolder holds a RuntimeConfig with atomic reloading: either the new
// config loads and validates cleanly and replaces the old one wholesale, or
// the old config is kept and Reload returns an error.
type ConfigHolder struct {
	mu      sync.RWMutex
	current RuntimeConfig

	loader     *Loader
	configPath string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []chan<- RuntimeConfig
}

// NewConfigHolder returns a holder seeded with initial.
func NewConfigHolder(initial RuntimeConfig, loader *Loader, configPath string) *ConfigHolder {
	return &ConfigHolder{
		current:    initial,
		loader:     loader,
		configPath: configPath,
		logger:     log.WithComponent("config"),
	}
}

// Get returns the current runtime config.
func (h *ConfigHolder) Get() RuntimeConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// AddReloadListener registers ch to receive every successfully applied
// reload. Sends are non-blocking; a slow listener misses updates rather
// than stalling the reload.
func (h *ConfigHolder) AddReloadListener(ch chan<- RuntimeConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// Reload loads and validates the config file, atomically swapping it in on
// success. On failure the previous config remains active.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading runtime configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("failed to load runtime configuration")
		return fmt.Errorf("load runtime config: %w", err)
	}
	if err := Validate(newCfg); err != nil {
		h.logger.Error().Err(err).Str(log.FieldEvent, "config.validation_failed").Msg("runtime configuration failed validation")
		return fmt.Errorf("validate runtime config: %w", err)
	}

	h.mu.Lock()
	h.current = newCfg
	h.mu.Unlock()

	h.notifyListeners(newCfg)
	h.logger.Info().Str(log.FieldEvent, "config.reload_success").Msg("runtime configuration reloaded")
	return nil
}

func (h *ConfigHolder) notifyListeners(cfg RuntimeConfig) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()
	for _, ch := range h.reloadListeners {
		select {
		case ch <- cfg:
		default:
		}
	}
}

// StartWatcher watches configPath for writes and triggers Reload on change,
// debouncing rapid successive writes. A no-op if configPath is empty.
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().Str(log.FieldEvent, "config.watcher_disabled").Msg("runtime config file watcher disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	if err := watcher.Add(h.configPath); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch runtime config file: %w", err)
	}

	h.logger.Info().Str(log.FieldEvent, "config.watcher_started").Str("path", h.configPath).Msg("watching runtime config file")
	go h.watchLoop(ctx)
	return nil
}

func (h *ConfigHolder) watchLoop(ctx context.Context) {
	const debounce = 500 * time.Millisecond
	var timer *time.Timer

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if h.watcher != nil {
			_ = h.watcher.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(log.FieldEvent, "config.watcher_stopped").Msg("runtime config watcher stopped")
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Warn().Err(err).Msg("runtime config reload triggered by file watch failed")
				}
			})
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn().Err(err).Msg("runtime config watcher error")
		}
	}
}
