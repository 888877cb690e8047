// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package caching

import (
	"context"

	"github.com/openkit-go/openkit/internal/log"
)

// SpaceEvictionStrategy drains records across sessions, one at a time,
// until the cache falls back to lowerBound bytes. A non-positive
// lowerBound, non-positive upperBound, or upperBound < lowerBound disables
// the strategy.
type SpaceEvictionStrategy struct {
	cache      *Cache
	lowerBound int64
	upperBound int64
}

// NewSpaceEvictionStrategy returns a strategy bound to cache.
func NewSpaceEvictionStrategy(cache *Cache, lowerBound, upperBound int64) *SpaceEvictionStrategy {
	return &SpaceEvictionStrategy{cache: cache, lowerBound: lowerBound, upperBound: upperBound}
}

// Disabled reports whether this strategy is a no-op.
func (s *SpaceEvictionStrategy) Disabled() bool {
	return s.lowerBound <= 0 || s.upperBound <= 0 || s.upperBound < s.lowerBound
}

// ShouldRun reports whether the cache currently exceeds upperBound.
func (s *SpaceEvictionStrategy) ShouldRun() bool {
	if s.Disabled() {
		return false
	}
	return s.cache.NumBytes() > s.upperBound
}

// Run drains one record at a time, round-robining session ids, until the
// cache falls to lowerBound bytes or ctx is cancelled. It returns the total
// number of records removed.
func (s *SpaceEvictionStrategy) Run(ctx context.Context) int {
	if s.Disabled() {
		return 0
	}

	total := 0
	removedBySession := make(map[int32]int)

	for s.cache.NumBytes() > s.lowerBound {
		if ctx.Err() != nil {
			break
		}

		ids := s.cache.GetIDs()
		if len(ids) == 0 {
			break
		}

		progressed := false
		for _, sid := range ids {
			if ctx.Err() != nil {
				break
			}
			if s.cache.NumBytes() <= s.lowerBound {
				break
			}
			n := s.cache.EvictByCount(sid, 1)
			if n > 0 {
				total += n
				removedBySession[sid] += n
				progressed = true
			}
		}
		if !progressed {
			// No session yielded a record this pass; nothing left to drain.
			break
		}
	}

	if total > 0 {
		componentLogger := log.WithComponent("eviction.space")
		componentLogger.Info().
			Int(log.FieldNumRecords, total).
			Int64(log.FieldLowerBound, s.lowerBound).
			Int64(log.FieldUpperBound, s.upperBound).
			Int("sessions", len(removedBySession)).
			Msg("space eviction pass complete")
	}
	return total
}
