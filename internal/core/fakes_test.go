// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package core

import (
	"context"
	"sync/atomic"
)

type fakeTiming struct {
	now atomic.Int64
}

func (f *fakeTiming) NowMs() int64                     { return f.now.Load() }
func (f *fakeTiming) Sleep(_ context.Context, ms int64) { f.now.Add(ms) }
func (f *fakeTiming) Initialize(int64, bool)           {}

type fakeThreadIDProvider struct{ id int32 }

func (f fakeThreadIDProvider) CurrentThreadID() int32 { return f.id }
