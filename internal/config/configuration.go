// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config holds the OpenKit Configuration (effectively immutable
// once built) and the separate, hot-reloadable runtime configuration for
// ambient concerns such as log level and diagnostics.
package config

import (
	"sync"

	"github.com/openkit-go/openkit/internal/providers"
)

// OpenKitType selects the URL shape and feature flags of the target
// monitoring cluster.
type OpenKitType string

const (
	Dynatrace OpenKitType = "dynatrace"
	AppMon    OpenKitType = "appmon"
)

// TimeSyncSupported reports whether this cluster type supports the
// time-sync procedure at all; AppMon does not.
func (t OpenKitType) TimeSyncSupported() bool {
	return t != AppMon
}

// Device carries the device attributes encoded into every status query.
type Device struct {
	OS           string
	Manufacturer string
	ModelID      string
}

// BeaconCacheConfig bounds the beacon cache's age and size. A zero bound
// disables the corresponding eviction strategy.
type BeaconCacheConfig struct {
	MaxRecordAgeMs        int64
	LowerMemoryBoundBytes int64
	UpperMemoryBoundBytes int64
}

// Configuration is the enumerated set of OpenKit options (§6). It is built
// once by the façade and treated as effectively immutable by the core: the
// only fields that change after construction are the settings
// HandleStatusResponse folds in, and those are guarded by their own mutex,
// not by replacing this struct.
type Configuration struct {
	EndpointURL        string
	ApplicationID      string
	DeviceID           uint64
	ApplicationName    string
	ApplicationVersion string

	Device Device

	BeaconCache BeaconCacheConfig

	TrustManager providers.TrustManager

	OpenKitType OpenKitType

	// ServerID identifies the monitoring cluster node requests are bound
	// to; NewConfiguration sets it to 1 and nothing reassigns it afterward.
	ServerID int32

	mu             sync.RWMutex
	capture        bool
	sendIntervalMs int64
	maxBeaconBytes int64
	multiplicity   int32
}

// NewConfiguration returns a Configuration with capture enabled by default,
// matching the server-directive default used until the first status
// response arrives.
func NewConfiguration(endpointURL, applicationID string, deviceID uint64) *Configuration {
	return &Configuration{
		EndpointURL:   endpointURL,
		ApplicationID: applicationID,
		DeviceID:      deviceID,
		OpenKitType:   Dynatrace,
		ServerID:      1,
		capture:       true,
		multiplicity:  1,
	}
}

// ApplyStatusResponse folds in the settings fields a status response
// carries (cp=, si=, bl=, sr=), under the configuration's own mutex. Other
// fields of Configuration remain untouched.
func (c *Configuration) ApplyStatusResponse(captureEnabled bool, sendIntervalMs, maxBeaconBytes int64, multiplicity int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capture = captureEnabled
	if sendIntervalMs > 0 {
		c.sendIntervalMs = sendIntervalMs
	}
	if maxBeaconBytes > 0 {
		c.maxBeaconBytes = maxBeaconBytes
	}
	if multiplicity != 0 {
		c.multiplicity = multiplicity
	}
}

// IsCaptureEnabled reports the most recently applied capture directive.
func (c *Configuration) IsCaptureEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capture
}

// SendIntervalMs returns the most recently applied open-session send
// interval, or 0 if none has been applied yet.
func (c *Configuration) SendIntervalMs() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sendIntervalMs
}

// MaxBeaconSizeBytes returns the most recently applied beacon size limit,
// or 0 if none has been applied yet.
func (c *Configuration) MaxBeaconSizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxBeaconBytes
}

// Multiplicity returns the most recently applied session-report
// multiplicity.
func (c *Configuration) Multiplicity() int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.multiplicity
}
