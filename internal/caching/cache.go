// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package caching

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/metrics"
)

// Observer is notified after every successful additive mutation of the
// cache, once the entry mutation is visible and cache_bytes has been
// updated. Typically subscribed by the eviction worker.
type Observer interface {
	Update()
}

// Cache is the map of session id to entry, guarded by a topology lock plus
// per-entry locks. Lock order is always topology before entry; the topology
// lock is never re-acquired while holding an entry lock.
type Cache struct {
	mu      sync.RWMutex
	entries map[int32]*entry

	bytes   atomic.Int64
	records atomic.Int64

	observersMu sync.Mutex
	observers   []Observer

	logger zerolog.Logger
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[int32]*entry),
		logger:  log.WithComponent("cache"),
	}
}

// AddObserver registers o to be notified on every successful add.
func (c *Cache) AddObserver(o Observer) {
	c.observersMu.Lock()
	defer c.observersMu.Unlock()
	c.observers = append(c.observers, o)
}

func (c *Cache) notifyObservers() {
	c.observersMu.Lock()
	obs := append([]Observer(nil), c.observers...)
	c.observersMu.Unlock()
	for _, o := range obs {
		o.Update()
	}
}

func (c *Cache) getOrInsert(sid int32) *entry {
	c.mu.RLock()
	e, ok := c.entries[sid]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[sid]; ok {
		return e
	}
	e = newEntry()
	c.entries[sid] = e
	return e
}

func (c *Cache) lookup(sid int32) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[sid]
}

// AddEvent appends an event record for sid. Bytes are accounted for and
// observers notified exactly once, after the mutation is visible.
func (c *Cache) AddEvent(sid int32, ts int64, payload []byte) {
	c.addRecord(sid, Record{TimestampMs: ts, Payload: payload}, false)
}

// AddAction appends an action record for sid.
func (c *Cache) AddAction(sid int32, ts int64, payload []byte) {
	c.addRecord(sid, Record{TimestampMs: ts, Payload: payload}, true)
}

func (c *Cache) addRecord(sid int32, rec Record, isAction bool) {
	e := c.getOrInsert(sid)

	e.mu.Lock()
	if isAction {
		e.actionData = append(e.actionData, rec)
	} else {
		e.eventData = append(e.eventData, rec)
	}
	e.mu.Unlock()

	c.bytes.Add(rec.Size())
	c.records.Add(1)
	metrics.SetCacheSize(c.bytes.Load(), int(c.records.Load()))
	c.notifyObservers()
}

// DeleteEntry removes sid's entry entirely and subtracts its bytes from the
// running total.
func (c *Cache) DeleteEntry(sid int32) {
	c.mu.Lock()
	e, ok := c.entries[sid]
	if ok {
		delete(c.entries, sid)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	n := e.totalBytesLocked()
	removed := len(e.eventData) + len(e.actionData) + len(e.eventBeingSent) + len(e.actionBeingSent)
	e.mu.Unlock()

	c.bytes.Add(-n)
	c.records.Add(-int64(removed))
	metrics.SetCacheSize(c.bytes.Load(), int(c.records.Load()))
	c.logger.Debug().Int32(log.FieldSessionID, sid).Int64(log.FieldNumBytes, n).Msg("cache entry deleted")
}

// GetIDs returns a read-lock snapshot of every session id with an entry.
func (c *Cache) GetIDs() []int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int32, 0, len(c.entries))
	for sid := range c.entries {
		ids = append(ids, sid)
	}
	return ids
}

// GetEvents returns a snapshot of sid's pending event records.
func (c *Cache) GetEvents(sid int32) []Record {
	e := c.lookup(sid)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRecords(e.eventData)
}

// GetActions returns a snapshot of sid's pending action records.
func (c *Cache) GetActions(sid int32) []Record {
	e := c.lookup(sid)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRecords(e.actionData)
}

// GetEventsBeingSent returns a snapshot of sid's in-flight event records.
func (c *Cache) GetEventsBeingSent(sid int32) []Record {
	e := c.lookup(sid)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRecords(e.eventBeingSent)
}

// GetActionsBeingSent returns a snapshot of sid's in-flight action records.
func (c *Cache) GetActionsBeingSent(sid int32) []Record {
	e := c.lookup(sid)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRecords(e.actionBeingSent)
}

// EvictByAge removes every *_data record with TimestampMs < minTs from sid's
// entry, leaving being-sent lists untouched, and returns the count removed.
func (c *Cache) EvictByAge(sid int32, minTs int64) int {
	e := c.lookup(sid)
	if e == nil {
		return 0
	}

	e.mu.Lock()
	events, removedEvents, removedEventBytes := filterByAge(e.eventData, minTs)
	actions, removedActions, removedActionBytes := filterByAge(e.actionData, minTs)
	e.eventData = events
	e.actionData = actions
	e.mu.Unlock()

	removedBytes := removedEventBytes + removedActionBytes
	removedCount := removedEvents + removedActions
	if removedCount > 0 {
		c.bytes.Add(-removedBytes)
		c.records.Add(-int64(removedCount))
		metrics.SetCacheSize(c.bytes.Load(), int(c.records.Load()))
		metrics.RecordEviction("age", removedCount)
		c.logger.Debug().Int32(log.FieldSessionID, sid).Int(log.FieldNumRecords, removedCount).Msg("age eviction removed records")
	}
	return removedCount
}

func filterByAge(records []Record, minTs int64) (kept []Record, removedCount int, removedBytes int64) {
	kept = records[:0:0]
	for _, r := range records {
		if r.TimestampMs < minTs {
			removedCount++
			removedBytes += r.Size()
			continue
		}
		kept = append(kept, r)
	}
	return kept, removedCount, removedBytes
}

// EvictByCount removes up to n of sid's oldest *_data records, draining the
// action list before the event list, and returns the count removed.
func (c *Cache) EvictByCount(sid int32, n int) int {
	if n <= 0 {
		return 0
	}
	e := c.lookup(sid)
	if e == nil {
		return 0
	}

	e.mu.Lock()
	removed := 0
	var removedBytes int64
	for removed < n && len(e.actionData) > 0 {
		removedBytes += e.actionData[0].Size()
		e.actionData = e.actionData[1:]
		removed++
	}
	for removed < n && len(e.eventData) > 0 {
		removedBytes += e.eventData[0].Size()
		e.eventData = e.eventData[1:]
		removed++
	}
	e.mu.Unlock()

	if removed > 0 {
		c.bytes.Add(-removedBytes)
		c.records.Add(-int64(removed))
		metrics.SetCacheSize(c.bytes.Load(), int(c.records.Load()))
		metrics.RecordEviction("space", removed)
		c.logger.Debug().Int32(log.FieldSessionID, sid).Int(log.FieldNumRecords, removed).Msg("space eviction removed records")
	}
	return removed
}

// NumBytes returns the current cache_bytes aggregate. It is an atomic read
// and may be slightly stale relative to a concurrent add.
func (c *Cache) NumBytes() int64 {
	return c.bytes.Load()
}

// IsEmpty reports whether sid has no records in any of its four lists.
// A session with no entry at all is considered empty.
func (c *Cache) IsEmpty(sid int32) bool {
	e := c.lookup(sid)
	if e == nil {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isEmptyLocked()
}

// NextChunk assembles up to maxSize bytes of prefix + delimiter-separated
// records (actions before events) from sid's in-flight snapshot, marking
// the snapshot on first call (moving *_data into *_being_sent). Returns nil
// if sid has no entry.
func (c *Cache) NextChunk(sid int32, prefix string, maxSize int, delimiter string) []byte {
	e := c.lookup(sid)
	if e == nil {
		return nil
	}

	e.mu.Lock()
	if !e.chunking {
		n := e.totalBytesLocked()
		e.actionBeingSent = e.actionData
		e.eventBeingSent = e.eventData
		e.actionData = nil
		e.eventData = nil
		e.chunking = true
		e.mu.Unlock()
		if n > 0 {
			c.bytes.Add(-n)
			metrics.SetCacheSize(c.bytes.Load(), int(c.records.Load()))
		}
	} else {
		e.mu.Unlock()
	}

	e.mu.Lock()
	actions := cloneRecords(e.actionBeingSent)
	events := cloneRecords(e.eventBeingSent)
	e.mu.Unlock()

	if len(actions) == 0 && len(events) == 0 {
		return nil
	}

	buf := make([]byte, 0, maxSize)
	buf = append(buf, prefix...)
	for _, rec := range actions {
		if len(buf) >= maxSize {
			return buf
		}
		buf = append(buf, delimiter...)
		buf = append(buf, rec.Payload...)
	}
	for _, rec := range events {
		if len(buf) >= maxSize {
			return buf
		}
		buf = append(buf, delimiter...)
		buf = append(buf, rec.Payload...)
	}
	return buf
}

// RemoveChunked drops sid's in-flight snapshot, committing the send.
func (c *Cache) RemoveChunked(sid int32) {
	e := c.lookup(sid)
	if e == nil {
		return
	}
	e.mu.Lock()
	removed := len(e.eventBeingSent) + len(e.actionBeingSent)
	e.eventBeingSent = nil
	e.actionBeingSent = nil
	e.chunking = false
	e.mu.Unlock()

	if removed > 0 {
		c.records.Add(-int64(removed))
		metrics.SetCacheSize(c.bytes.Load(), int(c.records.Load()))
	}
}

// ResetChunked restores sid's in-flight snapshot to the front of *_data,
// preserving order, and adds the restored bytes back to cache_bytes.
// Observers are notified since the data became sendable again.
func (c *Cache) ResetChunked(sid int32) {
	e := c.lookup(sid)
	if e == nil {
		return
	}

	e.mu.Lock()
	restored := sizeOf(e.eventBeingSent) + sizeOf(e.actionBeingSent)
	restoredCount := len(e.eventBeingSent) + len(e.actionBeingSent)
	if len(e.actionBeingSent) > 0 {
		e.actionData = append(cloneRecords(e.actionBeingSent), e.actionData...)
	}
	if len(e.eventBeingSent) > 0 {
		e.eventData = append(cloneRecords(e.eventBeingSent), e.eventData...)
	}
	e.actionBeingSent = nil
	e.eventBeingSent = nil
	e.chunking = false
	e.mu.Unlock()

	if restored > 0 {
		c.bytes.Add(restored)
		c.records.Add(int64(restoredCount))
		metrics.SetCacheSize(c.bytes.Load(), int(c.records.Load()))
	}
	c.notifyObservers()
}
