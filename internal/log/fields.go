// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldActionID      = "action_id"
	FieldParentActionID = "parent_action_id"
	FieldBeaconID      = "beacon_id"
	FieldTracerID      = "tracer_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Cache fields
	FieldNumBytes     = "num_bytes"
	FieldNumRecords   = "num_records"
	FieldMaxAgeMs     = "max_age_ms"
	FieldLowerBound   = "lower_bound_bytes"
	FieldUpperBound   = "upper_bound_bytes"

	// State machine fields
	FieldOldState    = "old_state"
	FieldNewState    = "new_state"
	FieldCaptureOn   = "capture_on"
	FieldRetryAfter  = "retry_after_ms"
	FieldOffsetMs    = "cluster_offset_ms"

	// Network fields
	FieldEndpoint   = "endpoint_url"
	FieldStatusCode = "status_code"
)
