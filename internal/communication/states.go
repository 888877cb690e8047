// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package communication

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openkit-go/openkit/internal/config"
	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/metrics"
	"github.com/openkit-go/openkit/internal/protocol"
	"github.com/openkit-go/openkit/internal/telemetry"
)

var stateTracer = telemetry.Tracer("openkit.communication.state")

const (
	defaultSendIntervalMs         = 120_000
	defaultStatusCheckIntervalMs  = 2_000
	defaultMaxBeaconSizeBytes     = 30 * 1024
	chunkDelimiter                = "&"
)

// State is one of the closed set of sending states. The set is small and
// fixed, so a tagged variant with uniform dispatch is used instead of open
// polymorphism: every transition is total and exhaustive.
type State interface {
	Name() string
	Execute(ctx *Context, stopCtx context.Context)
	ShutdownState() State
}

func transitionToCaptureState(ctx *Context) {
	if ctx.Configuration().IsCaptureEnabled() {
		ctx.SetNextState(&CaptureOnState{})
		return
	}
	ctx.SetNextState(&CaptureOffState{})
}

func maxBeaconSize(ctx *Context) int {
	if n := ctx.Configuration().MaxBeaconSizeBytes(); n > 0 {
		return int(n)
	}
	return defaultMaxBeaconSizeBytes
}

func beaconPrefix(cfg *config.Configuration, sessionID int32) string {
	return fmt.Sprintf("vr=%s&ap=%s&sn=%d", cfg.ApplicationVersion, cfg.ApplicationID, sessionID)
}

// InitialState is the sender worker's entry point.
type InitialState struct{}

func (s *InitialState) Name() string         { return "initial" }
func (s *InitialState) ShutdownState() State { return &TerminalState{} }

func (s *InitialState) Execute(ctx *Context, stopCtx context.Context) {
	_, span := stateTracer.Start(stopCtx, "sending.state.initial", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	metrics.SetSendingState(s.Name())
	if ctx.IsShutdownRequested() {
		ctx.SetInitCompleted(false)
		ctx.SetNextState(s.ShutdownState())
		span.SetAttributes(telemetry.StateAttributes(s.Name(), false, 0)...)
		return
	}
	ctx.SetNextState(&TimeSyncState{Initial: true})
	span.SetAttributes(telemetry.StateAttributes(s.Name(), ctx.Configuration().IsCaptureEnabled(), 0)...)
}

// TimeSyncState runs the clock-offset procedure, either as the mandatory
// first step (Initial) or as a periodic resync triggered from CaptureOn.
type TimeSyncState struct {
	Initial bool
}

func (s *TimeSyncState) Name() string { return "time_sync" }

func (s *TimeSyncState) ShutdownState() State {
	if s.Initial {
		return &TerminalState{}
	}
	return &FlushState{}
}

func (s *TimeSyncState) Execute(ctx *Context, stopCtx context.Context) {
	stopCtx, span := stateTracer.Start(stopCtx, "sending.state.time_sync", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	metrics.SetSendingState(s.Name())

	if ctx.IsShutdownRequested() {
		if s.Initial {
			ctx.SetInitCompleted(false)
		}
		ctx.SetNextState(s.ShutdownState())
		return
	}

	if !ctx.TimeSyncSupported() {
		ctx.Timing().Initialize(0, false)
		transitionToCaptureState(ctx)
		if s.Initial {
			ctx.SetInitCompleted(true)
		}
		return
	}

	sleep := func(d time.Duration) { ctx.Timing().Sleep(stopCtx, d.Milliseconds()) }
	outcome := runTimeSync(ctx, sleep)

	switch {
	case outcome.tooManyRequests:
		stateLogger := ctx.Logger()
		stateLogger.Warn().Int64(log.FieldRetryAfter, outcome.retryAfterMs).Msg("time sync rate limited")
		ctx.SetNextState(&CaptureOffState{RetryAfterMs: outcome.retryAfterMs})
		span.SetAttributes(attribute.Bool("openkit.rate_limited", true))
		if s.Initial {
			ctx.SetInitCompleted(true)
		}
	case outcome.unsupported:
		ctx.SetTimeSyncSupported(false)
		ctx.Timing().Initialize(0, false)
		ctx.SetLastTimeSyncTs(ctx.Timing().NowMs())
		transitionToCaptureState(ctx)
		if s.Initial {
			ctx.SetInitCompleted(true)
		}
	case outcome.succeeded:
		ctx.Timing().Initialize(outcome.offsetMs, true)
		metrics.SetClusterTimeOffset(outcome.offsetMs)
		ctx.SetLastTimeSyncTs(ctx.Timing().NowMs())
		stateLogger := ctx.Logger()
		stateLogger.Info().Int64(log.FieldOffsetMs, outcome.offsetMs).Msg("time sync complete")
		transitionToCaptureState(ctx)
		span.SetAttributes(telemetry.StateAttributes(s.Name(), ctx.Configuration().IsCaptureEnabled(), outcome.offsetMs)...)
		if s.Initial {
			ctx.SetInitCompleted(true)
		}
	default:
		// Transient failures exhausted their retries without collecting
		// every sample. The initial sync still has to release waiters;
		// a periodic sync simply falls back to whichever capture state
		// configuration currently calls for.
		ctx.Timing().Initialize(0, ctx.TimeSyncSupported())
		transitionToCaptureState(ctx)
		span.SetStatus(codes.Error, "time sync retries exhausted")
		if s.Initial {
			ctx.SetInitCompleted(true)
		}
	}
}

// CaptureOnState transmits finished sessions and periodic open-session
// snapshots while the server allows capturing.
type CaptureOnState struct{}

func (s *CaptureOnState) Name() string         { return "capture_on" }
func (s *CaptureOnState) ShutdownState() State { return &FlushState{} }

func (s *CaptureOnState) Execute(ctx *Context, stopCtx context.Context) {
	stopCtx, span := stateTracer.Start(stopCtx, "sending.state.capture_on", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(telemetry.StateAttributes(s.Name(), true, 0)...)

	metrics.SetSendingState(s.Name())
	metrics.SetCaptureEnabled(true)

	if ctx.IsShutdownRequested() {
		ctx.SetNextState(s.ShutdownState())
		return
	}

	if ctx.TimeSyncSupported() {
		now := ctx.Timing().NowMs()
		last := ctx.LastTimeSyncTs()
		if last < 0 || now-last > timeSyncInterval.Milliseconds() {
			ctx.SetNextState(&TimeSyncState{Initial: false})
			return
		}
	}

	configureNewSessions(ctx)
	s.sendFinishedSessions(ctx, stopCtx)
	s.maybeSendOpenSessions(ctx, stopCtx)

	if !ctx.Configuration().IsCaptureEnabled() {
		ctx.SetNextState(&CaptureOffState{})
	}
}

func configureNewSessions(ctx *Context) {
	for _, w := range ctx.NewSessions() {
		resp, err := ctx.sendStatusRequest()
		if err != nil || protocol.IsErroneousResponse(resp) {
			continue
		}
		cfg := DefaultBeaconConfiguration
		if resp.Multiplicity != 0 {
			cfg.Multiplicity = resp.Multiplicity
		}
		w.ApplyBeaconConfiguration(cfg)
	}
}

// sendFinishedSessions drains every finished+configured session via
// next_chunk/send/commit, stopping at the first send failure for this tick
// and leaving the remaining data for the next one.
func (s *CaptureOnState) sendFinishedSessions(ctx *Context, stopCtx context.Context) {
	cache := ctx.Cache()
	cfg := ctx.Configuration()

	for _, w := range ctx.FinishedAndConfiguredSessions() {
		failed := false
		for {
			chunk := cache.NextChunk(w.SessionID, beaconPrefix(cfg, w.SessionID), maxBeaconSize(ctx), chunkDelimiter)
			if len(chunk) == 0 {
				cache.RemoveChunked(w.SessionID)
				break
			}
			resp, err := sendBeaconChunk(ctx, stopCtx, w.SessionID, chunk)
			if err != nil || protocol.IsErroneousResponse(resp) {
				cache.ResetChunked(w.SessionID)
				failed = true
				break
			}
			cache.RemoveChunked(w.SessionID)
			ctx.HandleStatusResponse(resp)
		}
		if failed {
			return
		}
		ctx.sessions.Remove(func(c *SessionWrapper) bool { return c == w })
	}
}

// sendBeaconChunk wraps a single beacon send in its own span so finished and
// open session sends are individually visible, carrying the session id and
// the cache attributes the wire call is acting on.
func sendBeaconChunk(ctx *Context, stopCtx context.Context, sessionID int32, chunk []byte) (*protocol.StatusResponse, error) {
	_, span := stateTracer.Start(stopCtx, "sending.beacon.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(telemetry.SessionAttributes(sessionID, 0, "")...)
	span.SetAttributes(attribute.Int(telemetry.BeaconBytesKey, len(chunk)))

	resp, err := ctx.sendBeaconRequest("", chunk)
	if err != nil || protocol.IsErroneousResponse(resp) {
		metrics.RecordBeaconSend("error")
		if err != nil {
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "beacon send failed")
		return resp, err
	}
	metrics.RecordBeaconSend("success")
	return resp, err
}

func (s *CaptureOnState) maybeSendOpenSessions(ctx *Context, stopCtx context.Context) {
	interval := ctx.Configuration().SendIntervalMs()
	if interval <= 0 {
		interval = defaultSendIntervalMs
	}

	now := ctx.Timing().NowMs()
	last := ctx.LastOpenSessionBeaconSendTs()
	if last != 0 && now-last < interval {
		return
	}

	cache := ctx.Cache()
	cfg := ctx.Configuration()
	for _, w := range ctx.OpenAndConfiguredSessions() {
		chunk := cache.NextChunk(w.SessionID, beaconPrefix(cfg, w.SessionID), maxBeaconSize(ctx), chunkDelimiter)
		if len(chunk) == 0 {
			cache.RemoveChunked(w.SessionID)
			continue
		}
		resp, err := sendBeaconChunk(ctx, stopCtx, w.SessionID, chunk)
		if err != nil || protocol.IsErroneousResponse(resp) {
			cache.ResetChunked(w.SessionID)
			continue
		}
		cache.RemoveChunked(w.SessionID)
		ctx.HandleStatusResponse(resp)
	}
	ctx.SetLastOpenSessionBeaconSendTs(now)
}

// CaptureOffState sleeps until the next status check, then re-enables
// capturing once the server allows it again.
type CaptureOffState struct {
	RetryAfterMs int64
}

func (s *CaptureOffState) Name() string         { return "capture_off" }
func (s *CaptureOffState) ShutdownState() State { return &FlushState{} }

func (s *CaptureOffState) Execute(ctx *Context, stopCtx context.Context) {
	_, span := stateTracer.Start(stopCtx, "sending.state.capture_off", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(telemetry.StateAttributes(s.Name(), false, 0)...)

	metrics.SetSendingState(s.Name())
	metrics.SetCaptureEnabled(false)

	if ctx.IsShutdownRequested() {
		ctx.SetNextState(s.ShutdownState())
		return
	}

	sleepMs := s.RetryAfterMs
	if sleepMs <= 0 {
		sleepMs = defaultStatusCheckIntervalMs
	}
	ctx.Timing().Sleep(stopCtx, sleepMs)
	s.RetryAfterMs = 0

	if ctx.IsShutdownRequested() {
		ctx.SetNextState(s.ShutdownState())
		return
	}

	resp, err := ctx.FetchStatus()
	if err != nil {
		return
	}
	ctx.HandleStatusResponse(resp)
	ctx.SetLastStatusCheckTs(ctx.Timing().NowMs())

	if resp != nil && resp.CaptureEnabled {
		ctx.SetNextState(&CaptureOnState{})
	}
}

// FlushState drains every finished session's remaining data best-effort on
// the way to Terminal, without retrying failures.
type FlushState struct{}

func (s *FlushState) Name() string         { return "flush" }
func (s *FlushState) ShutdownState() State { return &TerminalState{} }

func (s *FlushState) Execute(ctx *Context, stopCtx context.Context) {
	stopCtx, span := stateTracer.Start(stopCtx, "sending.state.flush", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(telemetry.StateAttributes(s.Name(), false, 0)...)

	metrics.SetSendingState(s.Name())

	cache := ctx.Cache()
	cfg := ctx.Configuration()
	for _, w := range ctx.FinishedAndConfiguredSessions() {
		for {
			chunk := cache.NextChunk(w.SessionID, beaconPrefix(cfg, w.SessionID), maxBeaconSize(ctx), chunkDelimiter)
			if len(chunk) == 0 {
				cache.RemoveChunked(w.SessionID)
				break
			}
			resp, err := sendBeaconChunk(ctx, stopCtx, w.SessionID, chunk)
			if err != nil || protocol.IsErroneousResponse(resp) {
				cache.ResetChunked(w.SessionID)
				break
			}
			cache.RemoveChunked(w.SessionID)
		}
	}
	ctx.SetNextState(&TerminalState{})
}

// TerminalState is absorbing: once entered, it keeps the shutdown flag set
// and never transitions away.
type TerminalState struct{}

func (s *TerminalState) Name() string         { return "terminal" }
func (s *TerminalState) ShutdownState() State { return s }

func (s *TerminalState) Execute(ctx *Context, stopCtx context.Context) {
	_, span := stateTracer.Start(stopCtx, "sending.state.terminal", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	metrics.SetSendingState(s.Name())
	ctx.RequestShutdown()
}
