// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package core

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openkit-go/openkit/internal/telemetry"
)

// Action reports events, values, and errors under a name, traces web
// requests, and leaves back to its parent. Implementations are safe for
// concurrent use only insofar as the owner-thread contract in spec.md §3
// holds; timestamp/sequence acquisition through the beacon is internally
// synchronized regardless.
type Action interface {
	ReportEvent(name string) Action
	ReportValueInt(name string, value int32) Action
	ReportValueDouble(name string, value float64) Action
	ReportValueString(name string, value string) Action
	ReportError(name string, code int32, reason string) Action
	TraceWebRequest(url string) WebRequestTracer
	LeaveAction() RootAction
	ID() int32
	IsNullObject() bool
}

// RootAction is an Action that may additionally enter child actions on the
// same level. Child actions returned by EnterAction cannot nest further:
// the narrower Action interface they're handed back as has no EnterAction
// method, even though the concrete type underneath does.
type RootAction interface {
	Action
	EnterAction(name string) Action
}

type actionNode struct {
	beacon  *Beacon
	session *Session

	id       int32
	name     string
	parentID int32
	parent   *actionNode

	startTime int64
	startSeq  int32
	endTime   atomic.Int64
	endSeq    atomic.Int32

	spanCtx context.Context
	span    trace.Span

	childrenMu sync.Mutex
	children   []*actionNode
}

func newRootAction(session *Session, name string) *actionNode {
	b := session.beacon
	a := &actionNode{
		beacon:    b,
		session:   session,
		id:        b.nextActionID(),
		name:      name,
		startTime: b.timing.NowMs(),
		startSeq:  b.nextSequence(),
	}
	a.endTime.Store(-1)
	a.spanCtx, a.span = coreTracer.Start(session.spanCtx, "action."+name, trace.WithSpanKind(trace.SpanKindInternal))
	a.span.SetAttributes(telemetry.SessionAttributes(b.SessionID(), a.id, name)...)
	return a
}

func (a *actionNode) isLeft() bool { return a.endTime.Load() != -1 }

func (a *actionNode) EnterAction(name string) Action {
	if a.isLeft() {
		return nullActionInstance
	}
	name = sanitize(name)
	if name == "" {
		return nullActionInstance
	}

	child := &actionNode{
		beacon:    a.beacon,
		session:   a.session,
		id:        a.beacon.nextActionID(),
		name:      name,
		parentID:  a.id,
		parent:    a,
		startTime: a.beacon.timing.NowMs(),
		startSeq:  a.beacon.nextSequence(),
	}
	child.endTime.Store(-1)
	child.spanCtx, child.span = coreTracer.Start(a.spanCtx, "action."+name, trace.WithSpanKind(trace.SpanKindInternal))
	child.span.SetAttributes(telemetry.SessionAttributes(a.beacon.SessionID(), child.id, name)...)

	a.childrenMu.Lock()
	a.children = append(a.children, child)
	a.childrenMu.Unlock()

	return child
}

func (a *actionNode) ReportEvent(name string) Action {
	if a.isLeft() {
		return a
	}
	name = sanitize(name)
	if name == "" {
		return a
	}
	a.beacon.encodeNamedEvent(a, name)
	return a
}

func (a *actionNode) ReportValueInt(name string, value int32) Action {
	if a.isLeft() {
		return a
	}
	name = sanitize(name)
	if name == "" {
		return a
	}
	a.beacon.encodeValue(a, etValueInt, name, strconv.FormatInt(int64(value), 10))
	return a
}

func (a *actionNode) ReportValueDouble(name string, value float64) Action {
	if a.isLeft() {
		return a
	}
	name = sanitize(name)
	if name == "" {
		return a
	}
	a.beacon.encodeValue(a, etValueDouble, name, strconv.FormatFloat(value, 'g', -1, 64))
	return a
}

func (a *actionNode) ReportValueString(name string, value string) Action {
	if a.isLeft() {
		return a
	}
	name = sanitize(name)
	if name == "" {
		return a
	}
	a.beacon.encodeValue(a, etValueString, name, sanitize(value))
	return a
}

func (a *actionNode) ReportError(name string, code int32, reason string) Action {
	if a.isLeft() {
		return a
	}
	name = sanitize(name)
	if name == "" {
		return a
	}
	a.beacon.encodeError(a, name, code, reason)
	a.span.SetStatus(codes.Error, reason)
	return a
}

func (a *actionNode) TraceWebRequest(rawURL string) WebRequestTracer {
	if a.isLeft() {
		return nullWebRequestTracerInstance
	}
	rawURL = sanitize(rawURL)
	if rawURL == "" {
		return nullWebRequestTracerInstance
	}
	return newWebRequestTracer(a.beacon, a.id, rawURL)
}

func (a *actionNode) LeaveAction() RootAction {
	now := a.beacon.timing.NowMs()
	if a.endTime.CompareAndSwap(-1, now) {
		a.endSeq.Store(a.beacon.nextSequence())
		a.beacon.encodeAction(a)
		a.span.End()
		if a.parent == nil {
			a.session.rootActionEnded(a)
		}
	}

	if a.parent != nil {
		return a.parent
	}
	return nullRootActionInstance
}

func (a *actionNode) ID() int32          { return a.id }
func (a *actionNode) IsNullObject() bool { return false }
