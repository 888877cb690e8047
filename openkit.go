// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package openkit is the composition root: it wires the beacon cache, the
// sending context and its background workers, and the session factory
// into a single handle the host application drives.
package openkit

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/openkit-go/openkit/internal/caching"
	"github.com/openkit-go/openkit/internal/communication"
	"github.com/openkit-go/openkit/internal/config"
	"github.com/openkit-go/openkit/internal/core"
	"github.com/openkit-go/openkit/internal/diagnostics"
	"github.com/openkit-go/openkit/internal/log"
	"github.com/openkit-go/openkit/internal/providers"
)

// wakeRatePerSecond bounds how often cache activity can wake the eviction
// worker early, independent of its poll-interval fallback.
const wakeRatePerSecond = 2.0

// OpenKit is the top-level handle a host application holds for the
// lifetime of the process: one cache, one sending context, one pair of
// background workers, many sessions created from it.
type OpenKit struct {
	cfg *config.Configuration

	sender    *communication.Context
	sessionID providers.SessionIDProvider
	threadID  providers.ThreadIDProvider
	timing    providers.TimingProvider

	crashDumpDir string

	senderWorker   *communication.SenderWorker
	evictionWorker *caching.EvictionWorker
}

// New wires a fresh OpenKit instance. crashDumpDir may be empty to disable
// the diagnostic crash-dump writer on sessions it creates.
func New(cfg *config.Configuration, timing providers.TimingProvider, httpProv providers.HTTPClientProvider, sessionIDProvider providers.SessionIDProvider, threadIDProvider providers.ThreadIDProvider, crashDumpDir string) *OpenKit {
	sender := communication.NewContext(cfg, timing, httpProv)

	timeStrategy := caching.NewTimeEvictionStrategy(sender.Cache(), cfg.BeaconCache.MaxRecordAgeMs)
	spaceStrategy := caching.NewSpaceEvictionStrategy(sender.Cache(), cfg.BeaconCache.LowerMemoryBoundBytes, cfg.BeaconCache.UpperMemoryBoundBytes)

	return &OpenKit{
		cfg:            cfg,
		sender:         sender,
		sessionID:      sessionIDProvider,
		threadID:       threadIDProvider,
		timing:         timing,
		crashDumpDir:   crashDumpDir,
		senderWorker:   communication.NewSenderWorker(sender),
		evictionWorker: caching.NewEvictionWorker(sender.Cache(), timeStrategy, spaceStrategy, wakeRatePerSecond),
	}
}

// Run starts the sender and eviction background workers and blocks until
// both have returned. Cancelling ctx, or calling Shutdown, drives the sender
// through to its terminal state; the eviction worker stops once the sender
// has returned or ctx is cancelled.
func (o *OpenKit) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	evictCtx, stopEviction := context.WithCancel(gctx)
	defer stopEviction()

	g.Go(func() error {
		defer stopEviction()
		return o.senderWorker.Run(gctx)
	})
	g.Go(func() error { return o.evictionWorker.Run(evictCtx, o.timing.NowMs) })

	componentLogger := log.WithComponent("openkit")
	componentLogger.Info().Msg("openkit workers started")
	return g.Wait()
}

// CreateSession opens a new session bound to this OpenKit's cache and
// sending context.
func (o *OpenKit) CreateSession() *core.Session {
	sessionID := o.sessionID.NextSessionID()
	beacon := core.NewBeacon(sessionID, o.sender.Cache(), o.timing, o.threadID, o.cfg)
	return core.NewSession(o.sender, beacon, o.crashDumpDir)
}

// Shutdown requests the sending state machine wind down to its terminal
// state; Run's goroutines return once it gets there.
func (o *OpenKit) Shutdown() {
	o.sender.RequestShutdown()
}

// Diagnostics returns an HTTP server exposing /healthz, /metrics, and
// /status for this instance. The caller decides whether and where to serve
// it; OpenKit never listens on a socket itself.
func (o *OpenKit) Diagnostics() *diagnostics.Server {
	return diagnostics.NewServer(
		func() string { return o.sender.CurrentState().Name() },
		func() int64 { return o.sender.Cache().NumBytes() },
	)
}
