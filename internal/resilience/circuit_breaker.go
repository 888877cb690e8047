// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/openkit-go/openkit/internal/metrics"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// clock abstracts time operations for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type eventKind int

const (
	eventAttempt eventKind = iota
	eventFailure
	eventSuccess
)

type event struct {
	at   time.Time
	kind eventKind
}

// CircuitBreaker implements a sliding-window failure-rate breaker used to
// wrap the beacon-send and status-check HTTP calls defensively: it trips to
// Open once enough technical failures accumulate within a recent window, and
// only lets requests through again after a probationary half-open period.
type CircuitBreaker struct {
	mu sync.Mutex

	name string

	threshold   int           // technical failures required to trip, within window
	minAttempts int           // attempts required within window before tripping is considered
	window      time.Duration // sliding window over which attempts/failures are counted
	resetTimeout time.Duration

	halfOpenSuccessThreshold int

	state              State
	openedAt           time.Time
	halfOpenSuccesses  int
	events             []event

	clock clock

	recoverPanic bool
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

func WithClock(c clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

func WithPanicRecovery(enabled bool) Option {
	return func(cb *CircuitBreaker) { cb.recoverPanic = enabled }
}

// WithHalfOpenSuccessThreshold sets how many consecutive probe successes are
// required to close the breaker again from half-open. Defaults to 1.
func WithHalfOpenSuccessThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.halfOpenSuccessThreshold = n
		}
	}
}

// NewCircuitBreaker creates a new breaker. threshold technical failures
// within window, once at least minAttempts attempts have also occurred
// within window, trip it to Open for resetTimeout before probing again.
func NewCircuitBreaker(name string, threshold, minAttempts int, window, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if minAttempts <= 0 {
		minAttempts = threshold
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}

	cb := &CircuitBreaker{
		name:                     name,
		state:                    StateClosed,
		threshold:                threshold,
		minAttempts:              minAttempts,
		window:                   window,
		resetTimeout:             resetTimeout,
		halfOpenSuccessThreshold: 1,
		clock:                    realClock{},
	}

	for _, opt := range opts {
		opt(cb)
	}

	metrics.SetCircuitBreakerState(cb.name, string(cb.state))
	return cb
}

// Execute runs fn respecting the breaker state, recording the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) (err error) {
	if !cb.AllowRequest() {
		return ErrCircuitOpen
	}
	cb.RecordAttempt()

	if cb.recoverPanic {
		defer func() {
			if r := recover(); r != nil {
				cb.RecordTechnicalFailure()
				panic(r)
			}
		}()
	}

	if err = fn(); err != nil {
		cb.RecordTechnicalFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// AllowRequest reports whether a request may currently proceed, transitioning
// Open to HalfOpen once resetTimeout has elapsed.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.pruneLocked()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) >= cb.resetTimeout {
			cb.transitionTo(StateHalfOpen)
			return true
		}
		return false
	default: // StateHalfOpen
		return true
	}
}

// RecordAttempt logs that a call was made, for sliding-window accounting.
func (cb *CircuitBreaker) RecordAttempt() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.appendLocked(eventAttempt)
}

// RecordSuccess logs a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.appendLocked(eventSuccess)

	if cb.state == StateHalfOpen {
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.halfOpenSuccessThreshold {
			cb.transitionTo(StateClosed)
		}
	}
}

// RecordTechnicalFailure logs a failed call caused by a technical error
// (connection refused, timeout, 5xx) as opposed to a caller-side exclusion.
func (cb *CircuitBreaker) RecordTechnicalFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.appendLocked(eventFailure)

	if cb.state == StateHalfOpen {
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.transitionTo(StateOpen)
		return
	}

	if cb.state == StateClosed {
		attempts, failures := cb.countsLocked()
		if failures >= cb.threshold && attempts >= cb.minAttempts {
			metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
			cb.transitionTo(StateOpen)
		}
	}
}

// GetState returns the current breaker state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) appendLocked(kind eventKind) {
	cb.events = append(cb.events, event{at: cb.clock.Now(), kind: kind})
	cb.pruneLocked()
}

func (cb *CircuitBreaker) pruneLocked() {
	cutoff := cb.clock.Now().Add(-cb.window)
	i := 0
	for i < len(cb.events) && cb.events[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		cb.events = cb.events[i:]
	}
}

func (cb *CircuitBreaker) countsLocked() (attempts, failures int) {
	for _, e := range cb.events {
		switch e.kind {
		case eventAttempt:
			attempts++
		case eventFailure:
			failures++
		}
	}
	return attempts, failures
}

// transitionTo moves to newState and updates metrics. Caller must hold mu.
func (cb *CircuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}
	cb.state = newState
	switch newState {
	case StateOpen:
		cb.openedAt = cb.clock.Now()
		cb.halfOpenSuccesses = 0
	case StateHalfOpen:
		cb.halfOpenSuccesses = 0
	case StateClosed:
		cb.events = nil
		cb.halfOpenSuccesses = 0
	}
	metrics.SetCircuitBreakerState(cb.name, string(newState))
}
