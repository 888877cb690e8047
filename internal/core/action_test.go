// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/openkit-go/openkit/internal/caching"
	"github.com/openkit-go/openkit/internal/communication"
	"github.com/openkit-go/openkit/internal/config"
)

func newTestSession(t *testing.T) (*Session, *caching.Cache, *fakeTiming) {
	t.Helper()
	// Session and action spans come from the global tracer, which only
	// records once an SDK provider is installed.
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	timing := &fakeTiming{}
	timing.now.Store(100)
	cfg := config.NewConfiguration("https://example.invalid", "app-id", 1)
	sender := communication.NewContext(cfg, timing, nil)
	beacon := NewBeacon(1, sender.Cache(), timing, fakeThreadIDProvider{}, cfg)
	session := NewSession(sender, beacon, "")
	return session, sender.Cache(), timing
}

func TestActionNode_EnterActionAppendsToParentChildren(t *testing.T) {
	session, _, _ := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)

	root.EnterAction("child-one")
	root.EnterAction("child-two")

	root.childrenMu.Lock()
	defer root.childrenMu.Unlock()
	require.Len(t, root.children, 2)
	assert.Equal(t, "child-one", root.children[0].name)
	assert.Equal(t, "child-two", root.children[1].name)
}

func TestActionNode_LeaveActionIsIdempotent(t *testing.T) {
	session, _, timing := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)

	timing.now.Add(50)
	first := root.LeaveAction()
	endAfterFirst := root.endTime.Load()

	timing.now.Add(50)
	second := root.LeaveAction()

	assert.Equal(t, endAfterFirst, root.endTime.Load())
	assert.Same(t, first, second)
}

func TestActionNode_LeaveActionReturnsParentForChildAction(t *testing.T) {
	session, _, _ := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)
	child := root.EnterAction("child").(*actionNode)

	parent := child.LeaveAction()
	assert.Same(t, root, parent)
}

func TestActionNode_LeaveActionOnRootReturnsNullRootAction(t *testing.T) {
	session, _, _ := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)

	parent := root.LeaveAction()
	assert.True(t, parent.IsNullObject())
}

func TestActionNode_ReportingAfterLeaveIsNoOp(t *testing.T) {
	session, cache, _ := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)
	root.LeaveAction()

	before := cache.NextChunk(session.beacon.SessionID(), "", 1<<20, "&")
	cache.ResetChunked(session.beacon.SessionID())

	root.ReportEvent("ignored")
	after := cache.NextChunk(session.beacon.SessionID(), "", 1<<20, "&")

	assert.Equal(t, before, after)
}

func TestActionNode_EmptyNameEnterActionReturnsNullAction(t *testing.T) {
	session, _, _ := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)

	child := root.EnterAction("")
	assert.True(t, child.IsNullObject())
}

func TestActionNode_EmptyNameReportEventIsSilentNoOp(t *testing.T) {
	session, cache, _ := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)

	sid := session.beacon.SessionID()
	before := cache.NextChunk(sid, "", 1<<20, "&")
	cache.ResetChunked(sid)

	root.ReportEvent("")

	after := cache.NextChunk(sid, "", 1<<20, "&")
	assert.Equal(t, before, after)
}

func TestActionNode_EnterActionOpensASpanClosedByLeaveAction(t *testing.T) {
	session, _, _ := newTestSession(t)
	root := session.EnterAction("checkout").(*actionNode)

	require.NotNil(t, root.span)
	assert.True(t, root.span.SpanContext().IsValid())

	root.LeaveAction()
	assert.False(t, root.span.IsRecording())
}
