// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package defaultprovider

import "sync/atomic"

// ThreadIDProvider approximates the OS thread id the original source reads,
// which Go's goroutines have no analogue for: it hands out a fresh id from
// this provider's own counter on every call. Callers needing stable
// correlation across several calls from the same logical caller should
// capture the returned value once and reuse it, rather than calling this
// provider repeatedly.
type ThreadIDProvider struct {
	counter atomic.Int32
}

// NewThreadIDProvider returns a provider backed by a fresh counter.
func NewThreadIDProvider() *ThreadIDProvider {
	return &ThreadIDProvider{}
}

// CurrentThreadID returns the next id from this provider's counter.
func (p *ThreadIDProvider) CurrentThreadID() int32 {
	return p.counter.Add(1)
}
