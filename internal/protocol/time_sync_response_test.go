// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeSyncResponse(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantRecv   int64
		wantSend   int64
	}{
		{name: "both present", body: "t1=123&t2=456", wantRecv: 123, wantSend: 456},
		{name: "empty body", body: "", wantRecv: -1, wantSend: -1},
		{name: "only t1, explicit -1", body: "t1=-1", wantRecv: -1, wantSend: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ParseTimeSyncResponse(200, tt.body, 0)
			assert.Equal(t, tt.wantRecv, resp.RequestReceiveTimestamp)
			assert.Equal(t, tt.wantSend, resp.ResponseSendTimestamp)
		})
	}
}

func TestParseTimeSyncResponse_RetryAfterConvertsToMilliseconds(t *testing.T) {
	resp := ParseTimeSyncResponse(429, "", 30)
	assert.Equal(t, int64(30000), resp.RetryAfterMs)
}

func TestIsTimeSyncDisabled(t *testing.T) {
	assert.True(t, IsTimeSyncDisabled(nil))
	assert.True(t, IsTimeSyncDisabled(&TimeSyncResponse{RequestReceiveTimestamp: -1, ResponseSendTimestamp: 456}))
	assert.True(t, IsTimeSyncDisabled(&TimeSyncResponse{RequestReceiveTimestamp: 123, ResponseSendTimestamp: 0}))
	assert.False(t, IsTimeSyncDisabled(&TimeSyncResponse{RequestReceiveTimestamp: 123, ResponseSendTimestamp: 456}))
}
