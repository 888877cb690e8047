// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package defaultprovider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemTimingProvider_SleepReturnsImmediatelyOnCancelledContext(t *testing.T) {
	p := NewSystemTimingProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	p.Sleep(ctx, 30_000)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSystemTimingProvider_SleepZeroOrNegativeIsNoOp(t *testing.T) {
	p := NewSystemTimingProvider()
	start := time.Now()
	p.Sleep(context.Background(), 0)
	p.Sleep(context.Background(), -1)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSystemTimingProvider_SleepRunsForAtLeastRequestedDuration(t *testing.T) {
	p := NewSystemTimingProvider()
	start := time.Now()
	p.Sleep(context.Background(), 20)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
