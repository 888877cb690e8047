// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package core

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/openkit-go/openkit/internal/communication"
	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/protocol"
	"github.com/openkit-go/openkit/internal/providers"
	"github.com/openkit-go/openkit/internal/telemetry"
)

// coreTracer traces session and action lifetimes: a span opens when a
// session or action starts and closes when it leaves/ends, so its duration
// in any trace backend matches the interval the beacon encodes.
var coreTracer = telemetry.Tracer("openkit.core")

// Session is a user's interaction with the host application: it owns a
// queue of open root actions, a reference to the sending context, and the
// Beacon that encodes everything it and its actions produce into the
// cache.
type Session struct {
	logger zerolog.Logger

	beacon *Beacon
	sender *communication.Context

	crashDumpDir string

	endTime atomic.Int64

	spanCtx context.Context
	span    trace.Span

	rootActionsMu sync.Mutex
	rootActions   []*actionNode
}

// NewSession registers a new session with sender and returns it already in
// the open state, with a session-start record already emitted. crashDumpDir
// may be empty to disable the diagnostic crash-dump writer.
func NewSession(sender *communication.Context, beacon *Beacon, crashDumpDir string) *Session {
	s := &Session{
		logger:       log.WithComponent("session"),
		beacon:       beacon,
		sender:       sender,
		crashDumpDir: crashDumpDir,
	}
	s.endTime.Store(-1)
	s.spanCtx, s.span = coreTracer.Start(context.Background(), "session", trace.WithSpanKind(trace.SpanKindInternal))
	s.span.SetAttributes(telemetry.SessionAttributes(beacon.SessionID(), 0, "")...)

	sender.StartSession(beacon.SessionID())
	beacon.encodeSessionStart()
	s.logger.Info().Int32(log.FieldSessionID, beacon.SessionID()).Msg("session started")
	return s
}

func (s *Session) isEnded() bool { return s.endTime.Load() != -1 }

// EnterAction opens a new root action under this session. A null/empty
// name, or a call after the session has ended, returns the null root
// action singleton.
func (s *Session) EnterAction(name string) RootAction {
	if s.isEnded() {
		return nullRootActionInstance
	}
	name = sanitize(name)
	if name == "" {
		return nullRootActionInstance
	}

	a := newRootAction(s, name)
	s.rootActionsMu.Lock()
	s.rootActions = append(s.rootActions, a)
	s.rootActionsMu.Unlock()
	return a
}

// rootActionEnded is called by a root action the first time its
// LeaveAction commits, so the session stops tracking it.
func (s *Session) rootActionEnded(ended *actionNode) {
	s.rootActionsMu.Lock()
	defer s.rootActionsMu.Unlock()
	for i, a := range s.rootActions {
		if a == ended {
			s.rootActions = append(s.rootActions[:i], s.rootActions[i+1:]...)
			return
		}
	}
}

func (s *Session) snapshotRootActions() []*actionNode {
	s.rootActionsMu.Lock()
	defer s.rootActionsMu.Unlock()
	return append([]*actionNode(nil), s.rootActions...)
}

// IdentifyUser tags this session with a user identifier. A null/empty tag,
// or a call after the session has ended, is a silent no-op.
func (s *Session) IdentifyUser(tag string) {
	if s.isEnded() {
		return
	}
	tag = sanitize(tag)
	if tag == "" {
		return
	}
	s.beacon.encodeIdentifyUser(tag)
}

// ReportCrash records an application crash against this session. A
// null/empty name, or a call after the session has ended, is a silent
// no-op. If crashDumpDir was configured, the crash is also written
// atomically to disk for operator inspection; the core never reads this
// file back.
func (s *Session) ReportCrash(name, reason, stacktrace string) {
	if s.isEnded() {
		return
	}
	name = sanitize(name)
	if name == "" {
		return
	}
	reason = sanitize(reason)
	stacktrace = sanitize(stacktrace)

	s.beacon.encodeCrash(name, reason, stacktrace)
	s.logger.Warn().Int32(log.FieldSessionID, s.beacon.SessionID()).Str("name", name).Msg("crash reported")
	s.writeCrashDump(name, reason, stacktrace)
}

func (s *Session) writeCrashDump(name, reason, stacktrace string) {
	if s.crashDumpDir == "" {
		return
	}

	ts := s.beacon.timing.NowMs()
	path := filepath.Join(s.crashDumpDir, fmt.Sprintf("session-%d-%d.crash", s.beacon.SessionID(), ts))
	content := fmt.Sprintf("name: %s\nreason: %s\n\n%s\n", name, reason, stacktrace)

	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("create pending crash dump file")
		return
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			s.logger.Debug().Err(err).Msg("cleanup pending crash dump file")
		}
	}()

	if _, err := pendingFile.Write([]byte(content)); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("write crash dump file")
		return
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("atomically replace crash dump file")
	}
}

// End ends this session. Only the first call takes effect: it stamps the
// end time, leaves every still-open root action, emits the session-end
// record, and finishes the session on the sender. Subsequent calls are
// no-ops.
func (s *Session) End() {
	now := s.beacon.timing.NowMs()
	if !s.endTime.CompareAndSwap(-1, now) {
		return
	}

	for _, a := range s.snapshotRootActions() {
		a.LeaveAction()
	}

	s.beacon.encodeSessionEnd()
	s.sender.FinishSession(s.beacon.SessionID())
	s.logger.Info().Int32(log.FieldSessionID, s.beacon.SessionID()).Msg("session ended")
	s.span.End()
}

// GetEndTime returns the session's end time in milliseconds, or -1 while
// the session is still open.
func (s *Session) GetEndTime() int64 { return s.endTime.Load() }

// IsSessionEnded reports whether End has been called.
func (s *Session) IsSessionEnded() bool { return s.isEnded() }

// IsEmpty reports whether the cache holds no records for this session.
func (s *Session) IsEmpty() bool { return s.beacon.cache.IsEmpty(s.beacon.SessionID()) }

// ClearCapturedData discards this session's cached records without ending
// the session.
func (s *Session) ClearCapturedData() { s.beacon.cache.DeleteEntry(s.beacon.SessionID()) }

// SendBeacon transmits this session's currently pending data through a
// one-off HTTP client built from provider, independent of the sender's own
// scheduled transmission. It drains the cache chunk by chunk, stopping at
// the first send failure and leaving the remainder for the next attempt.
func (s *Session) SendBeacon(provider providers.HTTPClientProvider) (*protocol.StatusResponse, error) {
	cfg := s.beacon.cfg
	client := provider.CreateClient(nil, providers.HTTPClientConfig{
		BaseURL:       cfg.EndpointURL,
		ApplicationID: cfg.ApplicationID,
		ServerID:      cfg.ServerID,
		TrustManager:  cfg.TrustManager,
	})

	sid := s.beacon.SessionID()
	prefix := fmt.Sprintf("vr=%s&ap=%s&sn=%d", cfg.ApplicationVersion, cfg.ApplicationID, sid)
	cache := s.beacon.cache

	var last *protocol.StatusResponse
	for {
		chunk := cache.NextChunk(sid, prefix, defaultSessionSendChunkBytes, "&")
		if len(chunk) == 0 {
			cache.RemoveChunked(sid)
			return last, nil
		}
		resp, err := client.SendBeaconRequest("", chunk)
		if err != nil || protocol.IsErroneousResponse(resp) {
			cache.ResetChunked(sid)
			return last, err
		}
		cache.RemoveChunked(sid)
		last = resp
	}
}

const defaultSessionSendChunkBytes = 30 * 1024
