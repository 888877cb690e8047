// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package caching

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumLiveBytes(c *Cache) int64 {
	var total int64
	for _, sid := range c.GetIDs() {
		for _, r := range c.GetEvents(sid) {
			total += r.Size()
		}
		for _, r := range c.GetActions(sid) {
			total += r.Size()
		}
		for _, r := range c.GetEventsBeingSent(sid) {
			total += r.Size()
		}
		for _, r := range c.GetActionsBeingSent(sid) {
			total += r.Size()
		}
	}
	return total
}

func TestCache_ByteAccountingInvariant(t *testing.T) {
	c := NewCache()

	c.AddEvent(1, 100, []byte("a"))
	c.AddAction(1, 101, []byte("bb"))
	c.AddEvent(2, 102, []byte("ccc"))
	assert.Equal(t, sumLiveBytes(c), c.NumBytes())

	c.EvictByAge(1, 101)
	assert.Equal(t, sumLiveBytes(c), c.NumBytes())

	c.EvictByCount(2, 1)
	assert.Equal(t, sumLiveBytes(c), c.NumBytes())

	c.DeleteEntry(1)
	assert.Equal(t, sumLiveBytes(c), c.NumBytes())
}

func TestCache_InsertionOrderPreserved(t *testing.T) {
	c := NewCache()
	for i := int64(0); i < 10; i++ {
		c.AddEvent(1, i, []byte{byte(i)})
	}
	events := c.GetEvents(1)
	require.Len(t, events, 10)
	for i, r := range events {
		assert.Equal(t, int64(i), r.TimestampMs)
	}
}

func TestCache_ChunkAndResetRestoresByteExactly(t *testing.T) {
	c := NewCache()
	c.AddAction(1, 100, []byte("action-1"))
	c.AddEvent(1, 101, []byte("event-1"))
	c.AddEvent(1, 102, []byte("event-2"))

	before := sumLiveBytes(c)
	beforeActions := c.GetActions(1)
	beforeEvents := c.GetEvents(1)

	chunk := c.NextChunk(1, "prefix&", 1<<20, "&")
	assert.NotEmpty(t, chunk)
	assert.Empty(t, c.GetActions(1))
	assert.Empty(t, c.GetEvents(1))

	c.ResetChunked(1)

	assert.Equal(t, before, sumLiveBytes(c))
	if diff := cmp.Diff(beforeActions, c.GetActions(1)); diff != "" {
		t.Errorf("actions not restored exactly: %s", diff)
	}
	if diff := cmp.Diff(beforeEvents, c.GetEvents(1)); diff != "" {
		t.Errorf("events not restored exactly: %s", diff)
	}
}

func TestCache_RemoveChunkedCommitsSend(t *testing.T) {
	c := NewCache()
	c.AddEvent(1, 100, []byte("x"))

	_ = c.NextChunk(1, "", 1<<20, "&")
	c.RemoveChunked(1)

	assert.True(t, c.IsEmpty(1))
	assert.Equal(t, int64(0), c.NumBytes())
}

func TestCache_AddDuringChunkingGoesToData(t *testing.T) {
	c := NewCache()
	c.AddEvent(1, 100, []byte("first"))
	_ = c.NextChunk(1, "", 1<<20, "&")

	c.AddEvent(1, 200, []byte("second"))
	assert.Len(t, c.GetEvents(1), 1)
	assert.Equal(t, int64(200), c.GetEvents(1)[0].TimestampMs)
	assert.Len(t, c.GetEventsBeingSent(1), 1)
}

func TestCache_EvictByAgeExactBoundary(t *testing.T) {
	c := NewCache()
	c.AddEvent(1, 10, []byte("old"))
	c.AddEvent(1, 20, []byte("boundary"))
	c.AddEvent(1, 30, []byte("new"))

	removed := c.EvictByAge(1, 20)
	assert.Equal(t, 1, removed)

	remaining := c.GetEvents(1)
	require.Len(t, remaining, 2)
	for _, r := range remaining {
		assert.GreaterOrEqual(t, r.TimestampMs, int64(20))
	}
}

func TestCache_EvictByCountDrainsActionsBeforeEvents(t *testing.T) {
	c := NewCache()
	c.AddEvent(1, 1, []byte("e1"))
	c.AddAction(1, 2, []byte("a1"))
	c.AddAction(1, 3, []byte("a2"))

	removed := c.EvictByCount(1, 2)
	assert.Equal(t, 2, removed)
	assert.Empty(t, c.GetActions(1))
	assert.Len(t, c.GetEvents(1), 1)
}

func TestCache_NextChunkRespectsMaxSize(t *testing.T) {
	c := NewCache()
	c.AddAction(1, 1, []byte("12345"))
	c.AddAction(1, 2, []byte("67890"))

	chunk := c.NextChunk(1, "", 6, "&")
	// prefix("") + "&12345" = 6 bytes, hits max_size; the loop checks the
	// stop condition before appending the next record, so the second
	// record is never appended.
	assert.Equal(t, "&12345", string(chunk))
}

func TestCache_NextChunkOnEmptyEntryReturnsNil(t *testing.T) {
	c := NewCache()
	assert.Nil(t, c.NextChunk(1, "", 100, "&"))
}

func TestCache_DeleteEntryMissingIsNoop(t *testing.T) {
	c := NewCache()
	c.DeleteEntry(999)
	assert.Equal(t, int64(0), c.NumBytes())
}

type countingObserver struct{ n int }

func (o *countingObserver) Update() { o.n++ }

func TestCache_ObserverNotifiedOnAdd(t *testing.T) {
	c := NewCache()
	obs := &countingObserver{}
	c.AddObserver(obs)

	c.AddEvent(1, 1, []byte("x"))
	assert.Equal(t, 1, obs.n)

	c.AddAction(1, 2, []byte("y"))
	assert.Equal(t, 2, obs.n)
}
