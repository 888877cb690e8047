// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package communication

import (
	"context"
	"time"
)

// senderPollInterval paces ticks once a state's own work returns quickly,
// mirroring the eviction worker's poll fallback.
const senderPollInterval = 1 * time.Second

// SenderWorker drives a Context's state machine one tick at a time until it
// reaches Terminal.
type SenderWorker struct {
	ctx *Context
}

// NewSenderWorker returns a worker bound to sendingCtx.
func NewSenderWorker(sendingCtx *Context) *SenderWorker {
	return &SenderWorker{ctx: sendingCtx}
}

// Run ticks the state machine until it reaches Terminal. Once ctx is done
// it requests shutdown on the sending context and keeps ticking, so the
// states wind down through their shutdown transitions before Run returns.
// Terminal itself requests shutdown as well, so once reached the
// cooperative flag stays set and this loop always converges.
func (w *SenderWorker) Run(ctx context.Context) error {
	logger := w.ctx.Logger()
	ticker := time.NewTicker(senderPollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			w.ctx.RequestShutdown()
		}

		w.ctx.ExecuteCurrentState(ctx)
		if w.ctx.IsInTerminalState() {
			logger.Info().Msg("sender worker reached terminal state")
			return nil
		}

		select {
		case <-ctx.Done():
			w.ctx.RequestShutdown()
		case <-ticker.C:
		}
	}
}
