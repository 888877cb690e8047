// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package core implements the session, action, and web-request tracer
// lifecycle, and the per-session Beacon encoder that turns their state into
// records appended to the beacon cache.
package core

import (
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/openkit-go/openkit/internal/caching"
	"github.com/openkit-go/openkit/internal/config"
	"github.com/openkit-go/openkit/internal/providers"
)

// Record type discriminators. The numbering is this encoder's own; nothing
// in the core reads it back, only the remote end interprets it.
const (
	etSessionStart = 18
	etSessionEnd   = 19
	etAction       = 1
	etNamedEvent   = 10
	etValueInt     = 11
	etValueDouble  = 12
	etValueString  = 13
	etError        = 40
	etCrash        = 50
	etIdentifyUser = 60
	etWebRequest   = 30
)

// Beacon is the per-session encoder bound to the cache. It owns the
// session's monotonic sequence counter and the per-beacon action id
// allocator; every lifecycle object created for this session shares one
// Beacon instance.
type Beacon struct {
	sessionID      int32
	sessionStartMs int64

	cache            *caching.Cache
	timing           providers.TimingProvider
	threadIDProvider providers.ThreadIDProvider
	cfg              *config.Configuration

	sequence atomic.Int32
	actionID atomic.Int32
}

// NewBeacon returns a Beacon for sessionID, stamping the session start time
// from timing immediately.
func NewBeacon(sessionID int32, cache *caching.Cache, timing providers.TimingProvider, threadIDProvider providers.ThreadIDProvider, cfg *config.Configuration) *Beacon {
	return &Beacon{
		sessionID:        sessionID,
		sessionStartMs:   timing.NowMs(),
		cache:            cache,
		timing:           timing,
		threadIDProvider: threadIDProvider,
		cfg:              cfg,
	}
}

// SessionID returns the session id this beacon is bound to.
func (b *Beacon) SessionID() int32 { return b.sessionID }

func (b *Beacon) nextSequence() int32 { return b.sequence.Add(1) }
func (b *Beacon) nextActionID() int32 { return b.actionID.Add(1) }

func (b *Beacon) threadID() int32 {
	if b.threadIDProvider == nil {
		return 0
	}
	return b.threadIDProvider.CurrentThreadID()
}

func (b *Beacon) offsetMs(ts int64) int64 { return ts - b.sessionStartMs }

func (b *Beacon) appendAction(values url.Values) {
	b.cache.AddAction(b.sessionID, b.timing.NowMs(), []byte(values.Encode()))
}

func (b *Beacon) appendEvent(values url.Values) {
	b.cache.AddEvent(b.sessionID, b.timing.NowMs(), []byte(values.Encode()))
}

func (b *Beacon) encodeSessionStart() {
	v := url.Values{}
	v.Set("et", strconv.Itoa(etSessionStart))
	v.Set("it", strconv.Itoa(int(b.threadID())))
	v.Set("t0", strconv.FormatInt(b.offsetMs(b.sessionStartMs), 10))
	if b.cfg != nil {
		v.Set("os", sanitize(b.cfg.Device.OS))
		v.Set("mf", sanitize(b.cfg.Device.Manufacturer))
		v.Set("md", sanitize(b.cfg.Device.ModelID))
	}
	b.appendEvent(v)
}

func (b *Beacon) encodeSessionEnd() {
	v := url.Values{}
	v.Set("et", strconv.Itoa(etSessionEnd))
	v.Set("it", strconv.Itoa(int(b.threadID())))
	v.Set("t0", strconv.FormatInt(b.offsetMs(b.timing.NowMs()), 10))
	b.appendEvent(v)
}

func (b *Beacon) encodeAction(a *actionNode) {
	v := url.Values{}
	v.Set("et", strconv.Itoa(etAction))
	v.Set("na", sanitize(a.name))
	v.Set("it", strconv.Itoa(int(b.threadID())))
	v.Set("ca", strconv.Itoa(int(a.id)))
	v.Set("pa", strconv.Itoa(int(a.parentID)))
	v.Set("s0", strconv.Itoa(int(a.startSeq)))
	v.Set("t0", strconv.FormatInt(b.offsetMs(a.startTime), 10))
	v.Set("s1", strconv.Itoa(int(a.endSeq.Load())))
	v.Set("t1", strconv.FormatInt(a.endTime.Load()-a.startTime, 10))
	b.appendAction(v)
}

func (b *Beacon) encodeNamedEvent(a *actionNode, name string) {
	v := url.Values{}
	v.Set("et", strconv.Itoa(etNamedEvent))
	v.Set("na", sanitize(name))
	v.Set("it", strconv.Itoa(int(b.threadID())))
	v.Set("ca", strconv.Itoa(int(a.id)))
	v.Set("s0", strconv.Itoa(int(b.nextSequence())))
	v.Set("t0", strconv.FormatInt(b.offsetMs(b.timing.NowMs()), 10))
	b.appendEvent(v)
}

func (b *Beacon) encodeValue(a *actionNode, et int, name, encoded string) {
	v := url.Values{}
	v.Set("et", strconv.Itoa(et))
	v.Set("na", sanitize(name))
	v.Set("vl", encoded)
	v.Set("it", strconv.Itoa(int(b.threadID())))
	v.Set("ca", strconv.Itoa(int(a.id)))
	v.Set("s0", strconv.Itoa(int(b.nextSequence())))
	v.Set("t0", strconv.FormatInt(b.offsetMs(b.timing.NowMs()), 10))
	b.appendEvent(v)
}

func (b *Beacon) encodeError(a *actionNode, name string, code int32, reason string) {
	v := url.Values{}
	v.Set("et", strconv.Itoa(etError))
	v.Set("na", sanitize(name))
	v.Set("ev", strconv.Itoa(int(code)))
	v.Set("rs", sanitize(reason))
	v.Set("it", strconv.Itoa(int(b.threadID())))
	v.Set("ca", strconv.Itoa(int(a.id)))
	v.Set("s0", strconv.Itoa(int(b.nextSequence())))
	v.Set("t0", strconv.FormatInt(b.offsetMs(b.timing.NowMs()), 10))
	b.appendEvent(v)
}

func (b *Beacon) encodeCrash(name, reason, stacktrace string) {
	v := url.Values{}
	v.Set("et", strconv.Itoa(etCrash))
	v.Set("na", sanitize(name))
	v.Set("rs", sanitize(reason))
	v.Set("st", sanitize(stacktrace))
	v.Set("it", strconv.Itoa(int(b.threadID())))
	v.Set("t0", strconv.FormatInt(b.offsetMs(b.timing.NowMs()), 10))
	b.appendEvent(v)
}

func (b *Beacon) encodeIdentifyUser(tag string) {
	v := url.Values{}
	v.Set("et", strconv.Itoa(etIdentifyUser))
	v.Set("na", sanitize(tag))
	v.Set("it", strconv.Itoa(int(b.threadID())))
	v.Set("t0", strconv.FormatInt(b.offsetMs(b.timing.NowMs()), 10))
	b.appendEvent(v)
}

func (b *Beacon) encodeWebRequest(t *webRequestNode) {
	v := url.Values{}
	v.Set("et", strconv.Itoa(etWebRequest))
	v.Set("na", sanitize(t.url))
	v.Set("it", strconv.Itoa(int(b.threadID())))
	v.Set("pa", strconv.Itoa(int(t.parentActionID)))
	v.Set("s0", strconv.Itoa(int(t.startSeq)))
	v.Set("t0", strconv.FormatInt(b.offsetMs(t.startTime), 10))
	v.Set("s1", strconv.Itoa(int(t.endSeq.Load())))
	v.Set("t1", strconv.FormatInt(t.endTime.Load()-t.startTime, 10))
	v.Set("rc", strconv.Itoa(int(t.responseCode.Load())))
	v.Set("bs", strconv.Itoa(int(t.bytesSent.Load())))
	v.Set("br", strconv.Itoa(int(t.bytesReceived.Load())))
	b.appendAction(v)
}
