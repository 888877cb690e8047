// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package communication

import (
	"sort"
	"time"

	"github.com/openkit-go/openkit/internal/protocol"
)

const (
	timeSyncInterval           = 60 * time.Second
	requiredTimeSyncRequests   = 5
	timeSyncMaxRetriesPerSample = 5
	timeSyncInitialBackoff     = 1 * time.Second
)

// timeSyncOutcome is the result of attempting to collect the required
// number of clock-offset samples.
type timeSyncOutcome struct {
	offsetMs        int64
	succeeded       bool
	tooManyRequests bool
	retryAfterMs    int64
	unsupported     bool
}

// runTimeSync performs REQUIRED_TIME_SYNC_REQUESTS samples against client,
// backing off on transient errors and aborting on the first 429 or
// non-positive server timestamp. sleep is the context's timing provider,
// injected so tests can run this without wall-clock delay.
func runTimeSync(client interface {
	SendTimeSyncRequest() (*protocol.TimeSyncResponse, error)
}, sleep func(time.Duration)) timeSyncOutcome {
	offsets := make([]int64, 0, requiredTimeSyncRequests)

	for i := 0; i < requiredTimeSyncRequests; i++ {
		offset, outcome, ok := sampleOnce(client, sleep)
		if !ok {
			return outcome
		}
		offsets = append(offsets, offset)
	}

	return timeSyncOutcome{offsetMs: computeClusterOffset(offsets), succeeded: true}
}

// sampleOnce collects a single offset sample, retrying transient failures
// with exponential backoff up to timeSyncMaxRetriesPerSample times.
func sampleOnce(client interface {
	SendTimeSyncRequest() (*protocol.TimeSyncResponse, error)
}, sleep func(time.Duration)) (int64, timeSyncOutcome, bool) {
	backoff := timeSyncInitialBackoff

	for attempt := 0; attempt <= timeSyncMaxRetriesPerSample; attempt++ {
		tSend := time.Now().UnixMilli()
		resp, err := client.SendTimeSyncRequest()
		tRecvLocal := time.Now().UnixMilli()

		if err != nil {
			if attempt == timeSyncMaxRetriesPerSample {
				return 0, timeSyncOutcome{}, false
			}
			sleep(backoff)
			backoff *= 2
			continue
		}

		if resp.ResponseCode == 429 {
			return 0, timeSyncOutcome{tooManyRequests: true, retryAfterMs: resp.RetryAfterMs}, false
		}

		if protocol.IsTimeSyncDisabled(resp) {
			return 0, timeSyncOutcome{unsupported: true}, false
		}

		offset := ((resp.RequestReceiveTimestamp - tSend) + (resp.ResponseSendTimestamp - tRecvLocal)) / 2
		return offset, timeSyncOutcome{}, true
	}

	return 0, timeSyncOutcome{}, false
}

// computeClusterOffset implements spec.md §4.3's filtered-mean algorithm:
// sort, take the median, compute variance around it, then average every
// sample within one variance of the median.
func computeClusterOffset(offsets []int64) int64 {
	if len(offsets) == 0 {
		return 0
	}

	sorted := append([]int64(nil), offsets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	median := sorted[len(sorted)/2]

	var sumSq int64
	for _, o := range sorted {
		d := o - median
		sumSq += d * d
	}
	variance := sumSq / int64(len(sorted))

	var filteredSum, filteredCount int64
	for _, o := range sorted {
		d := o - median
		if d*d <= variance {
			filteredSum += o
			filteredCount++
		}
	}
	if filteredCount == 0 {
		return 0
	}
	return filteredSum / filteredCount
}
