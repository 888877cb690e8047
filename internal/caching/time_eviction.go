// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package caching

import "github.com/openkit-go/openkit/internal/log"

// TimeEvictionStrategy removes records older than maxAgeMs from every
// session, at most once per maxAgeMs interval. A non-positive maxAgeMs
// disables the strategy.
type TimeEvictionStrategy struct {
	cache     *Cache
	maxAgeMs  int64
	lastRunMs int64
	firstRun  bool
}

// NewTimeEvictionStrategy returns a strategy bound to cache, disabled when
// maxAgeMs <= 0.
func NewTimeEvictionStrategy(cache *Cache, maxAgeMs int64) *TimeEvictionStrategy {
	return &TimeEvictionStrategy{cache: cache, maxAgeMs: maxAgeMs, firstRun: true}
}

// Disabled reports whether this strategy is a no-op.
func (s *TimeEvictionStrategy) Disabled() bool {
	return s.maxAgeMs <= 0
}

// ShouldRun reports whether maxAgeMs has elapsed since the last run. The
// very first call stores now and reports false, so the strategy never
// evicts on its first tick.
func (s *TimeEvictionStrategy) ShouldRun(nowMs int64) bool {
	if s.Disabled() {
		return false
	}
	if s.firstRun {
		s.firstRun = false
		s.lastRunMs = nowMs
		return false
	}
	return nowMs-s.lastRunMs >= s.maxAgeMs
}

// Run evicts every record older than maxAgeMs across all sessions and logs
// the total removed.
func (s *TimeEvictionStrategy) Run(nowMs int64) int {
	if s.Disabled() {
		return 0
	}
	minTs := nowMs - s.maxAgeMs
	total := 0
	for _, sid := range s.cache.GetIDs() {
		total += s.cache.EvictByAge(sid, minTs)
	}
	s.lastRunMs = nowMs
	if total > 0 {
		componentLogger := log.WithComponent("eviction.age")
		componentLogger.Info().
			Int(log.FieldNumRecords, total).
			Int64(log.FieldMaxAgeMs, s.maxAgeMs).
			Msg("age eviction pass complete")
	}
	return total
}
