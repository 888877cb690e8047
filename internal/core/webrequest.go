// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package core

import (
	"fmt"
	"sync/atomic"
)

// WebRequestTracer records the timing and outcome of a single outbound web
// request, correlated to its parent action via a tag the host application
// propagates on the wire. Start/Stop are idempotent; setters are ignored
// once Stop has been called.
type WebRequestTracer interface {
	Tag() string
	SetResponseCode(code int32) WebRequestTracer
	SetBytesSent(n int32) WebRequestTracer
	SetBytesReceived(n int32) WebRequestTracer
	Start() WebRequestTracer
	Stop()
	IsNullObject() bool
}

type webRequestNode struct {
	beacon         *Beacon
	parentActionID int32
	url            string

	responseCode  atomic.Int32
	bytesSent     atomic.Int32
	bytesReceived atomic.Int32

	startTime int64
	startSeq  int32
	started   atomic.Bool

	endTime atomic.Int64
	endSeq  atomic.Int32
}

func newWebRequestTracer(beacon *Beacon, parentActionID int32, url string) *webRequestNode {
	t := &webRequestNode{beacon: beacon, parentActionID: parentActionID, url: url}
	t.responseCode.Store(-1)
	t.endTime.Store(-1)
	return t
}

// Tag returns a correlation value the host application can propagate to the
// remote end, e.g. as an HTTP header, so the server-side trace links back
// to this web request.
func (t *webRequestNode) Tag() string {
	return fmt.Sprintf("MT_3_%d_%d-0_%d_%s", t.beacon.SessionID(), t.parentActionID, t.beacon.threadID(), t.url)
}

func (t *webRequestNode) SetResponseCode(code int32) WebRequestTracer {
	if t.isStopped() {
		return t
	}
	t.responseCode.Store(code)
	return t
}

func (t *webRequestNode) SetBytesSent(n int32) WebRequestTracer {
	if t.isStopped() {
		return t
	}
	t.bytesSent.Store(n)
	return t
}

func (t *webRequestNode) SetBytesReceived(n int32) WebRequestTracer {
	if t.isStopped() {
		return t
	}
	t.bytesReceived.Store(n)
	return t
}

func (t *webRequestNode) Start() WebRequestTracer {
	if t.started.CompareAndSwap(false, true) {
		t.startTime = t.beacon.timing.NowMs()
		t.startSeq = t.beacon.nextSequence()
	}
	return t
}

func (t *webRequestNode) isStopped() bool { return t.endTime.Load() != -1 }

func (t *webRequestNode) Stop() {
	t.Start() // spec treats an un-started tracer as implicitly started at stop time
	now := t.beacon.timing.NowMs()
	if !t.endTime.CompareAndSwap(-1, now) {
		return
	}
	t.endSeq.Store(t.beacon.nextSequence())
	t.beacon.encodeWebRequest(t)
}

func (t *webRequestNode) IsNullObject() bool { return false }
