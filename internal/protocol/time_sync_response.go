// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package protocol

import (
	"net/url"
	"strconv"
)

// TimeSyncResponse is the decoded form of a time-sync response.
type TimeSyncResponse struct {
	ResponseCode int

	// RequestReceiveTimestamp is t1=, the server's receive time for this
	// request. -1 if the key was absent.
	RequestReceiveTimestamp int64

	// ResponseSendTimestamp is t2=, the server's send time for the
	// response. -1 if the key was absent.
	ResponseSendTimestamp int64

	// RetryAfterMs mirrors the HTTP Retry-After header (seconds, converted
	// to milliseconds) when ResponseCode is 429. Zero otherwise.
	RetryAfterMs int64
}

// ParseTimeSyncResponse decodes body's t1=/t2= pairs. Missing keys decode to
// -1, matching the wire contract in spec. retryAfterSeconds is the raw HTTP
// Retry-After header value (0 if absent); it is stored converted to
// milliseconds.
func ParseTimeSyncResponse(responseCode int, body string, retryAfterSeconds int64) *TimeSyncResponse {
	resp := &TimeSyncResponse{
		ResponseCode:            responseCode,
		RequestReceiveTimestamp: -1,
		ResponseSendTimestamp:   -1,
		RetryAfterMs:            retryAfterSeconds * 1000,
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		return resp
	}

	if v := values.Get("t1"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			resp.RequestReceiveTimestamp = n
		}
	}
	if v := values.Get("t2"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			resp.ResponseSendTimestamp = n
		}
	}

	return resp
}

// IsTimeSyncDisabled reports whether the server indicated it does not
// support time-sync: either timestamp is non-positive.
func IsTimeSyncDisabled(resp *TimeSyncResponse) bool {
	if resp == nil {
		return true
	}
	return resp.RequestReceiveTimestamp <= 0 || resp.ResponseSendTimestamp <= 0
}
