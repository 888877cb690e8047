// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package defaultprovider

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionIDProvider allocates monotonically increasing session ids, seeded
// from a random uuid so that ids are unlikely to collide across process
// restarts while remaining cheap, contention-free int32 generation within
// a process.
type SessionIDProvider struct {
	counter atomic.Int32
}

// NewSessionIDProvider returns a provider seeded from a fresh random uuid.
func NewSessionIDProvider() *SessionIDProvider {
	seed := uuid.New()
	seedVal := int32(binary.BigEndian.Uint32(seed[:4]) & 0x7fffffff)
	p := &SessionIDProvider{}
	p.counter.Store(seedVal)
	return p
}

// NextSessionID returns the next id in sequence.
func (p *SessionIDProvider) NextSessionID() int32 {
	return p.counter.Add(1)
}
