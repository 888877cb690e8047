// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package protocol decodes the query-string wire responses the monitoring
// cluster sends back for status and time-sync requests, and classifies HTTP
// outcomes the sending state machine needs to branch on.
package protocol

import (
	"net/url"
	"strconv"
)

// StatusResponse is the decoded form of a status or beacon-send response.
type StatusResponse struct {
	ResponseCode int

	// CaptureEnabled mirrors the server's cp= directive. Absent keys leave
	// this at its default of true, matching the core treating "no
	// directive" as "keep capturing."
	CaptureEnabled bool

	// SendIntervalMs is the si= directive in milliseconds; 0 means
	// "unspecified, keep the current interval."
	SendIntervalMs int64

	// MaxBeaconSizeBytes is the bl= directive; 0 means unspecified.
	MaxBeaconSizeBytes int64

	// Multiplicity is the sr= session-report multiplicity directive.
	Multiplicity int32

	// RetryAfterMs is populated from the HTTP Retry-After header (seconds,
	// converted to milliseconds) when ResponseCode is 429. Zero otherwise.
	RetryAfterMs int64
}

// ParseStatusResponse decodes body's query-string key/value pairs into a
// StatusResponse. retryAfterSeconds is the raw HTTP Retry-After header value
// (0 if absent); it is stored converted to milliseconds.
func ParseStatusResponse(responseCode int, body string, retryAfterSeconds int64) *StatusResponse {
	resp := &StatusResponse{
		ResponseCode:   responseCode,
		CaptureEnabled: true,
		RetryAfterMs:   retryAfterSeconds * 1000,
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		return resp
	}

	if v := values.Get("cp"); v != "" {
		resp.CaptureEnabled = v != "0"
	}
	if v := values.Get("si"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			resp.SendIntervalMs = n
		}
	}
	if v := values.Get("bl"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			resp.MaxBeaconSizeBytes = n
		}
	}
	if v := values.Get("sr"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			resp.Multiplicity = int32(n)
		}
	}

	return resp
}

// IsSuccessfulResponse reports whether resp is non-nil and carries an HTTP
// 2xx response code; the body is not inspected.
func IsSuccessfulResponse(resp *StatusResponse) bool {
	return resp != nil && resp.ResponseCode >= 200 && resp.ResponseCode < 300
}

// IsTooManyRequestsResponse reports whether resp is an HTTP 429.
func IsTooManyRequestsResponse(resp *StatusResponse) bool {
	return resp != nil && resp.ResponseCode == 429
}

// IsErroneousResponse reports whether resp is neither successful nor a
// too-many-requests response — i.e. a hard failure the caller should treat
// as transient and retry.
func IsErroneousResponse(resp *StatusResponse) bool {
	if resp == nil {
		return true
	}
	return !IsSuccessfulResponse(resp) && !IsTooManyRequestsResponse(resp)
}
