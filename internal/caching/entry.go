// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package caching

import "sync"

// entry is a per-session cache slot: four ordered record sequences and the
// lock that serializes all mutations of this session's data.
type entry struct {
	mu sync.Mutex

	eventData  []Record
	actionData []Record

	// chunking is true exactly while a snapshot is in flight, i.e. while
	// eventBeingSent/actionBeingSent hold the data reserved for
	// transmission. Both lists are present together or both absent.
	chunking        bool
	eventBeingSent  []Record
	actionBeingSent []Record
}

func newEntry() *entry {
	return &entry{}
}

// totalBytesLocked sums all four lists. Caller must hold mu.
func (e *entry) totalBytesLocked() int64 {
	return sizeOf(e.eventData) + sizeOf(e.actionData) + sizeOf(e.eventBeingSent) + sizeOf(e.actionBeingSent)
}

func (e *entry) isEmptyLocked() bool {
	return len(e.eventData) == 0 && len(e.actionData) == 0 &&
		len(e.eventBeingSent) == 0 && len(e.actionBeingSent) == 0
}
