// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package communication

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/openkit-go/openkit/internal/caching"
	"github.com/openkit-go/openkit/internal/config"
	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/protocol"
	"github.com/openkit-go/openkit/internal/providers"
	"github.com/openkit-go/openkit/internal/resilience"
)

// Context is the mutable shared state the sending states execute against:
// current/next state, the session registry, the init latch, and the
// settings a status response folds into configuration.
type Context struct {
	logger zerolog.Logger

	cfg      *config.Configuration
	timing   providers.TimingProvider
	httpProv providers.HTTPClientProvider

	cache *caching.Cache

	mu      sync.Mutex
	current State
	next     State

	shutdownRequested atomic.Bool

	initOnce      sync.Once
	initDone      chan struct{}
	initSucceeded atomic.Bool

	httpClientOnce sync.Once
	httpClient     providers.HTTPClient
	httpBreaker    *resilience.CircuitBreaker
	statusGroup    singleflight.Group

	lastStatusCheckTs           atomic.Int64
	lastOpenSessionBeaconSendTs atomic.Int64
	lastTimeSyncTs              atomic.Int64
	timeSyncSupported           atomic.Bool

	sessions *sessionQueue[*SessionWrapper]
}

// NewContext returns a context in the Initial state, with the init latch
// armed and last_time_sync_ts defaulted to -1 per spec.
func NewContext(cfg *config.Configuration, timing providers.TimingProvider, httpProv providers.HTTPClientProvider) *Context {
	ctx := &Context{
		logger:   log.WithComponent("sending-context"),
		cfg:      cfg,
		timing:   timing,
		httpProv: httpProv,
		cache:    caching.NewCache(),
		initDone: make(chan struct{}),
		sessions: newSessionQueue[*SessionWrapper](),
	}
	ctx.httpBreaker = resilience.NewCircuitBreaker("beacon-http", 3, 5, 30*time.Second, 30*time.Second)
	ctx.lastTimeSyncTs.Store(-1)
	ctx.timeSyncSupported.Store(cfg.OpenKitType.TimeSyncSupported())
	ctx.current = &InitialState{}
	return ctx
}

// Cache returns the beacon cache backing this context's sessions.
func (ctx *Context) Cache() *caching.Cache { return ctx.cache }

// Configuration returns the configuration this context was built with.
func (ctx *Context) Configuration() *config.Configuration { return ctx.cfg }

// Timing returns the timing provider this context was built with.
func (ctx *Context) Timing() providers.TimingProvider { return ctx.timing }

// SetNextState records the state execute_current_state should transition to
// once the current state's execute call returns. If never called, the
// current state remains current.
func (ctx *Context) SetNextState(s State) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.next = s
}

// CurrentState returns the currently active state.
func (ctx *Context) CurrentState() State {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.current
}

// IsInTerminalState reports whether the current state is Terminal.
func (ctx *Context) IsInTerminalState() bool {
	_, ok := ctx.CurrentState().(*TerminalState)
	return ok
}

// ExecuteCurrentState runs a single tick: the current state's Execute, then
// the transition to whatever SetNextState recorded, if anything. stopCtx is
// threaded into every suspension point the state enters (time-sync backoff,
// capture-off's status-check sleep) so a cancellation unblocks them instead
// of waiting out the full delay.
func (ctx *Context) ExecuteCurrentState(stopCtx context.Context) {
	state := ctx.CurrentState()
	state.Execute(ctx, stopCtx)

	ctx.mu.Lock()
	if ctx.next != nil {
		ctx.current = ctx.next
		ctx.next = nil
	}
	ctx.mu.Unlock()
}

// RequestShutdown sets the cooperative shutdown flag every state and
// suspension point observes.
func (ctx *Context) RequestShutdown() {
	ctx.shutdownRequested.Store(true)
}

// IsShutdownRequested reports the shutdown flag.
func (ctx *Context) IsShutdownRequested() bool {
	return ctx.shutdownRequested.Load()
}

// SetInitCompleted latches the given init outcome and releases every
// waiter. Only the first call has effect, matching a count-down latch with
// initial count one.
func (ctx *Context) SetInitCompleted(success bool) {
	ctx.initOnce.Do(func() {
		ctx.initSucceeded.Store(success)
		close(ctx.initDone)
	})
}

// WaitForInit blocks until SetInitCompleted is called, returning its
// success value.
func (ctx *Context) WaitForInit() bool {
	<-ctx.initDone
	return ctx.initSucceeded.Load()
}

// WaitForInitTimeout blocks until SetInitCompleted is called or timeout
// elapses, whichever comes first. Returns false on timeout.
func (ctx *Context) WaitForInitTimeout(timeout time.Duration) bool {
	select {
	case <-ctx.initDone:
		return ctx.initSucceeded.Load()
	case <-time.After(timeout):
		return false
	}
}

// GetHTTPClient lazily builds the HTTP client from configuration and
// reuses it for the lifetime of the context.
func (ctx *Context) GetHTTPClient() providers.HTTPClient {
	ctx.httpClientOnce.Do(func() {
		ctx.httpClient = ctx.httpProv.CreateClient(nil, providers.HTTPClientConfig{
			BaseURL:       ctx.cfg.EndpointURL,
			ApplicationID: ctx.cfg.ApplicationID,
			ServerID:      ctx.cfg.ServerID,
			TrustManager:  ctx.cfg.TrustManager,
		})
	})
	return ctx.httpClient
}

// sendStatusRequest issues a status request through the breaker that guards
// every outbound HTTP call this context makes.
func (ctx *Context) sendStatusRequest() (*protocol.StatusResponse, error) {
	var resp *protocol.StatusResponse
	err := ctx.httpBreaker.Execute(func() error {
		var innerErr error
		resp, innerErr = ctx.GetHTTPClient().SendStatusRequest()
		return innerErr
	})
	return resp, err
}

// sendBeaconRequest issues a beacon send through the breaker.
func (ctx *Context) sendBeaconRequest(clientIP string, data []byte) (*protocol.StatusResponse, error) {
	var resp *protocol.StatusResponse
	err := ctx.httpBreaker.Execute(func() error {
		var innerErr error
		resp, innerErr = ctx.GetHTTPClient().SendBeaconRequest(clientIP, data)
		return innerErr
	})
	return resp, err
}

// SendTimeSyncRequest issues a time-sync request through the breaker. It is
// exported so runTimeSync can treat *Context as an HTTPClient without this
// package needing a second concrete wrapper type.
func (ctx *Context) SendTimeSyncRequest() (*protocol.TimeSyncResponse, error) {
	var resp *protocol.TimeSyncResponse
	err := ctx.httpBreaker.Execute(func() error {
		var innerErr error
		resp, innerErr = ctx.GetHTTPClient().SendTimeSyncRequest()
		return innerErr
	})
	return resp, err
}

// FetchStatus issues a status request, collapsing overlapping concurrent
// calls into a single in-flight request via singleflight.
func (ctx *Context) FetchStatus() (*protocol.StatusResponse, error) {
	v, err, _ := ctx.statusGroup.Do("status", func() (interface{}, error) {
		return ctx.sendStatusRequest()
	})
	if err != nil {
		return nil, err
	}
	resp, _ := v.(*protocol.StatusResponse)
	return resp, nil
}

// HandleStatusResponse folds resp's settings into configuration and, if the
// server has disabled capture, clears every session's cached data and
// drops finished sessions from the registry.
func (ctx *Context) HandleStatusResponse(resp *protocol.StatusResponse) {
	if resp == nil {
		return
	}
	ctx.cfg.ApplyStatusResponse(resp.CaptureEnabled, resp.SendIntervalMs, resp.MaxBeaconSizeBytes, resp.Multiplicity)

	if !resp.CaptureEnabled {
		ctx.clearAllSessionData()
	}
}

func (ctx *Context) clearAllSessionData() {
	for _, w := range ctx.sessions.Snapshot() {
		ctx.cache.DeleteEntry(w.SessionID)
		if w.IsFinished() {
			ctx.sessions.Remove(func(c *SessionWrapper) bool { return c == w })
		}
	}
}

// StartSession registers a new session wrapper.
func (ctx *Context) StartSession(sessionID int32) *SessionWrapper {
	w := NewSessionWrapper(sessionID)
	ctx.sessions.Push(w)
	ctx.logger.Info().Int32(log.FieldSessionID, sessionID).Msg("session started")
	return w
}

// FinishSession marks sessionID's wrapper finished, if registered.
func (ctx *Context) FinishSession(sessionID int32) {
	for _, w := range ctx.sessions.Snapshot() {
		if w.SessionID == sessionID {
			w.MarkFinished()
			ctx.logger.Info().Int32(log.FieldSessionID, sessionID).Msg("session finished")
			return
		}
	}
}

// NewSessions returns every wrapper not yet configured.
func (ctx *Context) NewSessions() []*SessionWrapper {
	return ctx.sessions.Filter(func(w *SessionWrapper) bool { return !w.IsConfigured() })
}

// OpenAndConfiguredSessions returns every configured, not-yet-finished
// wrapper.
func (ctx *Context) OpenAndConfiguredSessions() []*SessionWrapper {
	return ctx.sessions.Filter(func(w *SessionWrapper) bool { return w.IsConfigured() && !w.IsFinished() })
}

// FinishedAndConfiguredSessions returns every configured, finished wrapper.
func (ctx *Context) FinishedAndConfiguredSessions() []*SessionWrapper {
	return ctx.sessions.Filter(func(w *SessionWrapper) bool { return w.IsConfigured() && w.IsFinished() })
}

// LastStatusCheckTs / LastOpenSessionBeaconSendTs / LastTimeSyncTs and their
// setters expose the context's scheduling bookkeeping to the states.

func (ctx *Context) LastStatusCheckTs() int64           { return ctx.lastStatusCheckTs.Load() }
func (ctx *Context) SetLastStatusCheckTs(ts int64)      { ctx.lastStatusCheckTs.Store(ts) }
func (ctx *Context) LastOpenSessionBeaconSendTs() int64 { return ctx.lastOpenSessionBeaconSendTs.Load() }
func (ctx *Context) SetLastOpenSessionBeaconSendTs(ts int64) {
	ctx.lastOpenSessionBeaconSendTs.Store(ts)
}
func (ctx *Context) LastTimeSyncTs() int64      { return ctx.lastTimeSyncTs.Load() }
func (ctx *Context) SetLastTimeSyncTs(ts int64) { ctx.lastTimeSyncTs.Store(ts) }

func (ctx *Context) TimeSyncSupported() bool      { return ctx.timeSyncSupported.Load() }
func (ctx *Context) SetTimeSyncSupported(v bool)  { ctx.timeSyncSupported.Store(v) }

// Logger returns the context's structured logger.
func (ctx *Context) Logger() zerolog.Logger { return ctx.logger }
