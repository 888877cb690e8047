// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package defaultprovider supplies concrete, ready-to-use implementations
// of the provider interfaces declared in internal/providers — external
// collaborators the core depends on only through their interfaces.
package defaultprovider

import (
	"context"
	"sync/atomic"
	"time"
)

// SystemTimingProvider is a TimingProvider backed by the OS wall clock.
type SystemTimingProvider struct {
	clusterOffsetMs   atomic.Int64
	timeSyncSupported atomic.Bool
}

// NewSystemTimingProvider returns a provider with time-sync support assumed
// until Initialize says otherwise.
func NewSystemTimingProvider() *SystemTimingProvider {
	p := &SystemTimingProvider{}
	p.timeSyncSupported.Store(true)
	return p
}

func (p *SystemTimingProvider) NowMs() int64 {
	return time.Now().UnixMilli()
}

func (p *SystemTimingProvider) Sleep(ctx context.Context, ms int64) {
	if ms <= 0 {
		return
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (p *SystemTimingProvider) Initialize(clusterOffsetMs int64, timeSyncSupported bool) {
	p.clusterOffsetMs.Store(clusterOffsetMs)
	p.timeSyncSupported.Store(timeSyncSupported)
}

// ClusterOffsetMs returns the most recently initialized cluster offset.
func (p *SystemTimingProvider) ClusterOffsetMs() int64 {
	return p.clusterOffsetMs.Load()
}

// TimeSyncSupported returns the most recently initialized support flag.
func (p *SystemTimingProvider) TimeSyncSupported() bool {
	return p.timeSyncSupported.Load()
}
