// SPDX-License-Identifier: MIT
package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/status", "http://cluster.example/status", 200)

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, HTTPMethodKey, "GET")
	verifyAttribute(t, attrs, HTTPRouteKey, "/status")
	verifyAttribute(t, attrs, HTTPURLKey, "http://cluster.example/status")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 200)
}

func TestSessionAttributes(t *testing.T) {
	tests := []struct {
		name       string
		sessionID  int32
		actionID   int32
		actionName string
		wantLen    int
	}{
		{name: "session only", sessionID: 1, wantLen: 1},
		{name: "with action", sessionID: 1, actionID: 5, actionName: "login", wantLen: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := SessionAttributes(tt.sessionID, tt.actionID, tt.actionName)
			if len(attrs) != tt.wantLen {
				t.Errorf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			verifyIntAttribute(t, attrs, SessionIDKey, int(tt.sessionID))
			if tt.actionID != 0 {
				verifyIntAttribute(t, attrs, ActionIDKey, int(tt.actionID))
			}
			if tt.actionName != "" {
				verifyAttribute(t, attrs, ActionNameKey, tt.actionName)
			}
		})
	}
}

func TestStateAttributes(t *testing.T) {
	attrs := StateAttributes("CaptureOn", true, 42)

	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, StateNameKey, "CaptureOn")
	verifyBoolAttribute(t, attrs, CaptureOnKey, true)
	verifyInt64Attribute(t, attrs, ClusterOffsetKey, 42)
}

func TestCacheAttributes(t *testing.T) {
	attrs := CacheAttributes(2048, 7)

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}

	verifyInt64Attribute(t, attrs, CacheBytesKey, 2048)
	verifyIntAttribute(t, attrs, CacheRecordsKey, 7)
}

func TestEvictionAttributes(t *testing.T) {
	attrs := EvictionAttributes("age", 3)

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, EvictionReasonKey, "age")
	verifyIntAttribute(t, attrs, CacheRecordsKey, 3)
}

func TestErrorAttributes(t *testing.T) {
	err := errors.New("test error")
	attrs := ErrorAttributes(err, "network_error")

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}

	verifyBoolAttribute(t, attrs, ErrorKey, true)
	verifyAttribute(t, attrs, ErrorTypeKey, "network_error")
}

func TestAttributeKeys_Consistency(t *testing.T) {
	keys := []string{
		HTTPMethodKey,
		HTTPStatusCodeKey,
		HTTPRouteKey,
		SessionIDKey,
		StateNameKey,
		CacheBytesKey,
		ErrorKey,
	}

	for _, key := range keys {
		if key == "" {
			t.Errorf("Expected non-empty attribute key")
		}
	}
}

// Helper functions for attribute verification

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, expectedValue string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != expectedValue {
				t.Errorf("Expected %s=%s, got %s", key, expectedValue, attr.Value.AsString())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != int64(expectedValue) {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyInt64Attribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int64) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != expectedValue {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyBoolAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue bool) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsBool() != expectedValue {
				t.Errorf("Expected %s=%t, got %t", key, expectedValue, attr.Value.AsBool())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}
