// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package providers declares the abstract collaborators the core depends on:
// the clock, the HTTP transport, session and thread id generation, and the
// log sink. The core never constructs a concrete implementation itself; it
// is handed one through configuration, the same way the host application
// supplies TLS trust and transport details.
package providers

import (
	"context"

	"github.com/openkit-go/openkit/internal/protocol"
)

// TimingProvider supplies monotonic wall-clock time and cooperative sleep.
// Implementations must be safe for concurrent use.
type TimingProvider interface {
	// NowMs returns the current time in milliseconds since the Unix epoch.
	NowMs() int64
	// Sleep blocks for at most ms milliseconds, or until ctx is done,
	// whichever comes first.
	Sleep(ctx context.Context, ms int64)
	// Initialize records the cluster time offset and whether time-sync is
	// supported, once the sender has completed its first sync attempt.
	Initialize(clusterOffsetMs int64, timeSyncSupported bool)
}

// HTTPClientConfig carries the subset of Configuration an HTTPClientProvider
// needs to build a client bound to a specific endpoint and application.
type HTTPClientConfig struct {
	BaseURL        string
	ApplicationID  string
	ServerID       int32
	TrustManager   TrustManager
}

// TrustManager is the abstract TLS-verification hook the core consumes
// without ever inspecting certificates itself.
type TrustManager interface {
	// Accept reports whether the given server name / certificate chain
	// should be trusted. The concrete check is transport-specific.
	Accept(serverName string) bool
}

// Logger is a minimal leveled log sink the core writes structured events
// through, independent of any concrete logging library.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// HTTPClient issues the three request kinds the sending state machine needs.
// A nil *protocol.StatusResponse / *protocol.TimeSyncResponse return with a
// non-nil error signals a transient failure; states treat it as retryable.
type HTTPClient interface {
	SendStatusRequest() (*protocol.StatusResponse, error)
	SendBeaconRequest(clientIP string, data []byte) (*protocol.StatusResponse, error)
	SendTimeSyncRequest() (*protocol.TimeSyncResponse, error)
}

// HTTPClientProvider builds an HTTPClient bound to the given configuration.
// The sending context calls this once in its lifetime (lazily, on first
// need) and reuses the client afterward; Session.SendBeacon builds a new
// client from the provider it is given on every call.
type HTTPClientProvider interface {
	CreateClient(logger Logger, cfg HTTPClientConfig) HTTPClient
}

// SessionIDProvider allocates monotonically distinct session ids.
// It has no obligation to be gap-free, only unique within the process.
type SessionIDProvider interface {
	NextSessionID() int32
}

// ThreadIDProvider returns an id correlating log lines/records produced by
// the same logical caller. Go has no stable OS thread id for a goroutine, so
// implementations approximate this; the contract only needs some int32.
type ThreadIDProvider interface {
	CurrentThreadID() int32
}
