// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package caching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpaceEvictionStrategy_Disabled(t *testing.T) {
	assert.True(t, NewSpaceEvictionStrategy(NewCache(), 0, 100).Disabled())
	assert.True(t, NewSpaceEvictionStrategy(NewCache(), 100, 0).Disabled())
	assert.True(t, NewSpaceEvictionStrategy(NewCache(), 200, 100).Disabled())
	assert.False(t, NewSpaceEvictionStrategy(NewCache(), 100, 200).Disabled())
}

func TestSpaceEvictionStrategy_ShouldRun(t *testing.T) {
	c := NewCache()
	s := NewSpaceEvictionStrategy(c, 1000, 2000)
	assert.False(t, s.ShouldRun())

	payload := make([]byte, 2000)
	c.AddEvent(1, 1, payload)
	assert.True(t, s.ShouldRun())
}

// TestSpaceEvictionStrategy_TerminatesAtOrBelowLowerBound covers testable
// property #5: space eviction terminates with num_bytes() <= lower_bound
// whenever the cache started above upper_bound with no concurrent adds.
func TestSpaceEvictionStrategy_TerminatesAtOrBelowLowerBound(t *testing.T) {
	c := NewCache()
	payload := make([]byte, 92) // 8 + 92 = 100 bytes per record

	for i := 0; i < 11; i++ {
		c.AddEvent(1, int64(i), payload)
	}
	for i := 0; i < 11; i++ {
		c.AddEvent(42, int64(i), payload)
	}
	assert.Equal(t, int64(2200), c.NumBytes())

	s := NewSpaceEvictionStrategy(c, 1000, 2000)
	assert.True(t, s.ShouldRun())

	removed := s.Run(context.Background())

	assert.LessOrEqual(t, c.NumBytes(), int64(1000))
	assert.Greater(t, removed, 0)
}

func TestSpaceEvictionStrategy_RunRespectsCancellation(t *testing.T) {
	c := NewCache()
	payload := make([]byte, 92)
	for i := 0; i < 30; i++ {
		c.AddEvent(1, int64(i), payload)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSpaceEvictionStrategy(c, 100, 200)
	removed := s.Run(ctx)
	assert.Equal(t, 0, removed)
}
