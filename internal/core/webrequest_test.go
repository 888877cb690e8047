// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebRequestTracer_StopIsIdempotent(t *testing.T) {
	session, _, timing := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)

	tracer := root.TraceWebRequest("https://example.invalid/resource").(*webRequestNode)
	tracer.Start()
	timing.now.Add(20)

	tracer.Stop()
	endAfterFirst := tracer.endTime.Load()

	timing.now.Add(20)
	tracer.Stop()

	assert.Equal(t, endAfterFirst, tracer.endTime.Load())
}

func TestWebRequestTracer_StopWithoutStartImplicitlyStarts(t *testing.T) {
	session, _, _ := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)

	tracer := root.TraceWebRequest("https://example.invalid/resource").(*webRequestNode)
	tracer.Stop()

	assert.True(t, tracer.started.Load())
	assert.NotEqual(t, int64(-1), tracer.endTime.Load())
}

func TestWebRequestTracer_SettersIgnoredAfterStop(t *testing.T) {
	session, _, _ := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)

	tracer := root.TraceWebRequest("https://example.invalid/resource").(*webRequestNode)
	tracer.SetResponseCode(200)
	tracer.Stop()

	tracer.SetResponseCode(500)
	assert.Equal(t, int32(200), tracer.responseCode.Load())
}

func TestWebRequestTracer_TagCorrelatesSessionAndParentAction(t *testing.T) {
	session, _, _ := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)

	tracer := root.TraceWebRequest("https://example.invalid/resource").(*webRequestNode)
	tag := tracer.Tag()

	assert.Contains(t, tag, fmt.Sprintf("MT_3_%d_%d-", session.beacon.SessionID(), root.id))
	assert.Contains(t, tag, "https://example.invalid/resource")
}

func TestActionNode_EmptyURLTraceWebRequestReturnsNullTracer(t *testing.T) {
	session, _, _ := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)

	tracer := root.TraceWebRequest("")
	assert.True(t, tracer.IsNullObject())
}

func TestActionNode_TraceWebRequestAfterLeaveReturnsNullTracer(t *testing.T) {
	session, _, _ := newTestSession(t)
	root := session.EnterAction("root").(*actionNode)
	root.LeaveAction()

	tracer := root.TraceWebRequest("https://example.invalid/resource")
	assert.True(t, tracer.IsNullObject())
}
