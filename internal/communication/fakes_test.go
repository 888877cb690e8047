// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package communication

import (
	"context"
	"sync/atomic"

	"github.com/openkit-go/openkit/internal/protocol"
	"github.com/openkit-go/openkit/internal/providers"
)

type fakeTiming struct {
	now               atomic.Int64
	clusterOffsetMs   atomic.Int64
	timeSyncSupported atomic.Bool
}

func (f *fakeTiming) NowMs() int64                          { return f.now.Load() }
func (f *fakeTiming) Sleep(_ context.Context, ms int64)      { f.now.Add(ms) }
func (f *fakeTiming) Initialize(offsetMs int64, supported bool) {
	f.clusterOffsetMs.Store(offsetMs)
	f.timeSyncSupported.Store(supported)
}

type fakeHTTPClient struct {
	statusResp *protocol.StatusResponse
	statusErr  error

	beaconResp *protocol.StatusResponse
	beaconErr  error

	timeSyncResponses []*protocol.TimeSyncResponse
	timeSyncErrs      []error
	timeSyncCalls     atomic.Int64

	statusCalls atomic.Int64
	beaconCalls atomic.Int64
}

func (c *fakeHTTPClient) SendStatusRequest() (*protocol.StatusResponse, error) {
	c.statusCalls.Add(1)
	return c.statusResp, c.statusErr
}

func (c *fakeHTTPClient) SendBeaconRequest(clientIP string, data []byte) (*protocol.StatusResponse, error) {
	c.beaconCalls.Add(1)
	return c.beaconResp, c.beaconErr
}

func (c *fakeHTTPClient) SendTimeSyncRequest() (*protocol.TimeSyncResponse, error) {
	i := int(c.timeSyncCalls.Add(1)) - 1
	if i < len(c.timeSyncErrs) && c.timeSyncErrs[i] != nil {
		return nil, c.timeSyncErrs[i]
	}
	if i < len(c.timeSyncResponses) {
		return c.timeSyncResponses[i], nil
	}
	return &protocol.TimeSyncResponse{RequestReceiveTimestamp: -1, ResponseSendTimestamp: -1}, nil
}

type fakeHTTPClientProvider struct {
	client *fakeHTTPClient
}

func (p *fakeHTTPClientProvider) CreateClient(_ providers.Logger, _ providers.HTTPClientConfig) providers.HTTPClient {
	return p.client
}
