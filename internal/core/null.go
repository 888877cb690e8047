// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package core

// The null objects below stand in for a real Action/RootAction/
// WebRequestTracer once the parent has ended, or whenever the host
// application supplied a null/empty name or URL. Every reporting method is
// a no-op returning the same singleton, so callers can keep chaining
// without a nil check.

type nullAction struct{}

var nullActionInstance = &nullAction{}

func (n *nullAction) ReportEvent(string) Action                      { return n }
func (n *nullAction) ReportValueInt(string, int32) Action             { return n }
func (n *nullAction) ReportValueDouble(string, float64) Action        { return n }
func (n *nullAction) ReportValueString(string, string) Action         { return n }
func (n *nullAction) ReportError(string, int32, string) Action        { return n }
func (n *nullAction) TraceWebRequest(string) WebRequestTracer         { return nullWebRequestTracerInstance }
func (n *nullAction) LeaveAction() RootAction                         { return nullRootActionInstance }
func (n *nullAction) ID() int32                                       { return 0 }
func (n *nullAction) IsNullObject() bool                              { return true }

type nullRootAction struct {
	nullAction
}

var nullRootActionInstance = &nullRootAction{}

func (n *nullRootAction) EnterAction(string) Action { return nullActionInstance }

// LeaveAction on the null root action is itself a no-op that returns
// the same null root action singleton, mirroring leaving an already-ended session's
// root level.
func (n *nullRootAction) LeaveAction() RootAction { return nullRootActionInstance }

type nullWebRequestTracer struct{}

var nullWebRequestTracerInstance = &nullWebRequestTracer{}

func (n *nullWebRequestTracer) Tag() string                              { return "" }
func (n *nullWebRequestTracer) SetResponseCode(int32) WebRequestTracer   { return n }
func (n *nullWebRequestTracer) SetBytesSent(int32) WebRequestTracer      { return n }
func (n *nullWebRequestTracer) SetBytesReceived(int32) WebRequestTracer  { return n }
func (n *nullWebRequestTracer) Start() WebRequestTracer                  { return n }
func (n *nullWebRequestTracer) Stop()                                    {}
func (n *nullWebRequestTracer) IsNullObject() bool                       { return true }
