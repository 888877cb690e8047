// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package communication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openkit-go/openkit/internal/protocol"
)

func TestComputeClusterOffset_KnownSample(t *testing.T) {
	assert.Equal(t, int64(5), computeClusterOffset([]int64{1, 3, 5, 7, 9}))
}

func TestComputeClusterOffset_EmptyReturnsZero(t *testing.T) {
	assert.Equal(t, int64(0), computeClusterOffset(nil))
}

func TestRunTimeSync_CollectsFiveSamples(t *testing.T) {
	resp := &protocol.TimeSyncResponse{RequestReceiveTimestamp: 10, ResponseSendTimestamp: 10}
	client := &fakeHTTPClient{timeSyncResponses: []*protocol.TimeSyncResponse{resp, resp, resp, resp, resp}}

	outcome := runTimeSync(client, func(time.Duration) {})
	assert.True(t, outcome.succeeded)
	assert.Equal(t, int64(5), client.timeSyncCalls.Load())
}

func TestRunTimeSync_TooManyRequestsAbortsImmediately(t *testing.T) {
	client := &fakeHTTPClient{
		timeSyncResponses: []*protocol.TimeSyncResponse{{ResponseCode: 429, RetryAfterMs: 30000}},
	}

	outcome := runTimeSync(client, func(time.Duration) {})
	assert.True(t, outcome.tooManyRequests)
	assert.Equal(t, int64(30000), outcome.retryAfterMs)
	assert.Equal(t, int64(1), client.timeSyncCalls.Load())
}

func TestRunTimeSync_UnsupportedStopsOnNonPositiveTimestamps(t *testing.T) {
	client := &fakeHTTPClient{
		timeSyncResponses: []*protocol.TimeSyncResponse{{RequestReceiveTimestamp: -1, ResponseSendTimestamp: -1}},
	}

	outcome := runTimeSync(client, func(time.Duration) {})
	assert.True(t, outcome.unsupported)
}

func TestRunTimeSync_TransientErrorsRetryWithBackoff(t *testing.T) {
	success := &protocol.TimeSyncResponse{RequestReceiveTimestamp: 10, ResponseSendTimestamp: 10}
	client := &fakeHTTPClient{
		timeSyncErrs:      []error{assert.AnError},
		timeSyncResponses: []*protocol.TimeSyncResponse{nil, success, success, success, success, success},
	}

	var slept []time.Duration
	outcome := runTimeSync(client, func(d time.Duration) { slept = append(slept, d) })

	assert.True(t, outcome.succeeded)
	assert.Len(t, slept, 1)
	assert.Equal(t, timeSyncInitialBackoff, slept[0])
}
