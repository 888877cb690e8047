// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package caching

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/openkit-go/openkit/internal/log"
)

// pollInterval bounds how long the eviction worker can sleep without a wake
// signal, so time eviction still runs on an otherwise idle cache.
const pollInterval = 1 * time.Second

// wakeObserver feeds a bounded, rate-limited wake channel from the cache's
// add-notifications, so a burst of add_event/add_action calls collapses
// into a single wake rather than a thundering herd of worker ticks.
type wakeObserver struct {
	limiter *rate.Limiter
	wake    chan struct{}
}

func newWakeObserver(wake chan struct{}, perSecond float64) *wakeObserver {
	return &wakeObserver{limiter: rate.NewLimiter(rate.Limit(perSecond), 1), wake: wake}
}

func (w *wakeObserver) Update() {
	if !w.limiter.Allow() {
		return
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// EvictionWorker runs the time and space eviction strategies on the same
// background tick, driven by a condition fed from the cache's observer
// notifications, blocking when idle and checking for shutdown before each
// strategy invocation.
type EvictionWorker struct {
	cache *Cache
	time  *TimeEvictionStrategy
	space *SpaceEvictionStrategy
	wake  chan struct{}
}

// NewEvictionWorker wires a worker against cache with the given strategies.
// wakeRatePerSecond bounds how often cache activity can wake the worker
// early, independent of the pollInterval fallback.
func NewEvictionWorker(cache *Cache, timeStrategy *TimeEvictionStrategy, spaceStrategy *SpaceEvictionStrategy, wakeRatePerSecond float64) *EvictionWorker {
	wake := make(chan struct{}, 1)
	cache.AddObserver(newWakeObserver(wake, wakeRatePerSecond))
	return &EvictionWorker{cache: cache, time: timeStrategy, space: spaceStrategy, wake: wake}
}

// Run blocks, driving eviction ticks until ctx is cancelled. It never
// re-enters a strategy once shutdown has been observed mid-pass.
func (w *EvictionWorker) Run(ctx context.Context, now func() int64) error {
	logger := log.WithComponent("eviction.worker")
	logger.Info().Str(log.FieldEvent, "eviction.worker.start").Msg("eviction worker started")
	defer logger.Info().Str(log.FieldEvent, "eviction.worker.stop").Msg("eviction worker stopped")

	timer := time.NewTimer(pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.wake:
		case <-timer.C:
		}

		if ctx.Err() != nil {
			return nil
		}
		w.tick(ctx, now())

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(pollInterval)
	}
}

func (w *EvictionWorker) tick(ctx context.Context, nowMs int64) {
	if ctx.Err() != nil {
		return
	}
	if w.time.ShouldRun(nowMs) {
		w.time.Run(nowMs)
	}
	if ctx.Err() != nil {
		return
	}
	if w.space.ShouldRun() {
		w.space.Run(ctx)
	}
}
