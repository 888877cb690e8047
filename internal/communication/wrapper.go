// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package communication

import "sync/atomic"

// BeaconConfiguration carries the per-session data-privacy and multiplicity
// settings the server assigns to a session, fetched once per new session.
type BeaconConfiguration struct {
	Multiplicity        int32
	DataCollectionLevel int32
	CrashReportingLevel int32
}

// DefaultBeaconConfiguration is what a session carries until the server
// assigns a real one.
var DefaultBeaconConfiguration = BeaconConfiguration{
	Multiplicity:        1,
	DataCollectionLevel: 2,
	CrashReportingLevel: 2,
}

// SessionWrapper adorns a session id with the sender-owned bookkeeping
// (configuration status, finished flag) that lets the state machine tell
// new, open+configured, and finished+configured sessions apart without the
// session itself knowing anything about the sender.
type SessionWrapper struct {
	SessionID int32

	configured atomic.Bool
	finished   atomic.Bool
	config     atomic.Pointer[BeaconConfiguration]
}

// NewSessionWrapper returns a wrapper carrying the default beacon
// configuration, not yet marked configured.
func NewSessionWrapper(sessionID int32) *SessionWrapper {
	w := &SessionWrapper{SessionID: sessionID}
	cfg := DefaultBeaconConfiguration
	w.config.Store(&cfg)
	return w
}

// IsConfigured reports whether the server has assigned this session a real
// beacon configuration.
func (w *SessionWrapper) IsConfigured() bool {
	return w.configured.Load()
}

// IsFinished reports whether the session has called end().
func (w *SessionWrapper) IsFinished() bool {
	return w.finished.Load()
}

// MarkFinished records that the session has ended.
func (w *SessionWrapper) MarkFinished() {
	w.finished.Store(true)
}

// ApplyBeaconConfiguration stores cfg and marks the wrapper configured.
func (w *SessionWrapper) ApplyBeaconConfiguration(cfg BeaconConfiguration) {
	w.config.Store(&cfg)
	w.configured.Store(true)
}

// Configuration returns the currently applied beacon configuration.
func (w *SessionWrapper) Configuration() BeaconConfiguration {
	return *w.config.Load()
}
