// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for the OpenKit agent.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the agent.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Session / beacon attributes
	SessionIDKey    = "openkit.session_id"
	ActionIDKey     = "openkit.action_id"
	ActionNameKey   = "openkit.action_name"
	BeaconBytesKey  = "openkit.beacon_bytes"

	// Sending state-machine attributes
	StateNameKey     = "openkit.sending_state"
	CaptureOnKey     = "openkit.capture_on"
	ClusterOffsetKey = "openkit.cluster_offset_ms"

	// Cache attributes
	CacheBytesKey     = "openkit.cache_bytes"
	CacheRecordsKey   = "openkit.cache_records"
	EvictionReasonKey = "openkit.eviction_reason"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SessionAttributes creates span attributes identifying a session and,
// optionally, the action acting on its behalf.
func SessionAttributes(sessionID int32, actionID int32, actionName string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs, attribute.Int(SessionIDKey, int(sessionID)))
	if actionID != 0 {
		attrs = append(attrs, attribute.Int(ActionIDKey, int(actionID)))
	}
	if actionName != "" {
		attrs = append(attrs, attribute.String(ActionNameKey, actionName))
	}
	return attrs
}

// StateAttributes creates span attributes describing the sending state machine.
func StateAttributes(stateName string, captureOn bool, clusterOffsetMs int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StateNameKey, stateName),
		attribute.Bool(CaptureOnKey, captureOn),
		attribute.Int64(ClusterOffsetKey, clusterOffsetMs),
	}
}

// CacheAttributes creates span attributes describing a cache operation.
func CacheAttributes(numBytes int64, numRecords int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(CacheBytesKey, numBytes),
		attribute.Int(CacheRecordsKey, numRecords),
	}
}

// EvictionAttributes creates span attributes describing an eviction pass.
func EvictionAttributes(reason string, removed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(EvictionReasonKey, reason),
		attribute.Int(CacheRecordsKey, removed),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
