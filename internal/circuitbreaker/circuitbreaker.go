// Package circuitbreaker short-circuits calls to the weather API after repeated
// failures so a dead upstream is not hammered every poll interval.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the breaker is open.
var ErrOpen = errors.New("circuit breaker open")

// State is the circuit breaker state (Closed, HalfOpen, Open).
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker opens after FailureThreshold consecutive failures, rejects
// calls for Timeout, then lets probes through in half-open state until
// SuccessThreshold of them succeed.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	component        string
	isFailure        func(error) bool
	onStateChange    func(component string, from, to State)
	now              func() time.Time
}

// Config holds circuit breaker parameters.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	Component        string
	// IsFailure decides whether an error counts against the circuit. Nil counts every error.
	IsFailure func(error) bool
	// OnStateChange is called after each transition, outside the lock.
	OnStateChange func(component string, from, to State)
	// Now overrides the clock in tests.
	Now func() time.Time
}

// New creates a CircuitBreaker, filling defaults for zero values.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		component:        cfg.Component,
		isFailure:        cfg.IsFailure,
		onStateChange:    cfg.OnStateChange,
		now:              cfg.Now,
	}
}

// Call runs fn when the circuit allows it and records the outcome. While open
// it returns ErrOpen without calling fn.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cb.mu.Lock()
	var transitions [][2]State
	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.timeout {
			cb.mu.Unlock()
			return ErrOpen
		}
		transitions = append(transitions, cb.setStateLocked(StateHalfOpen))
	}
	cb.mu.Unlock()
	cb.notify(transitions)

	err := fn()

	cb.mu.Lock()
	transitions = transitions[:0]
	if err != nil && (cb.isFailure == nil || cb.isFailure(err)) {
		cb.failureCount++
		if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
			cb.openedAt = cb.now()
			transitions = append(transitions, cb.setStateLocked(StateOpen))
		}
	} else {
		cb.failureCount = 0
		if cb.state == StateHalfOpen {
			cb.successCount++
			if cb.successCount >= cb.successThreshold {
				transitions = append(transitions, cb.setStateLocked(StateClosed))
			}
		}
	}
	cb.mu.Unlock()
	cb.notify(transitions)
	return err
}

// setStateLocked moves to s and resets the counters. Caller holds mu.
func (cb *CircuitBreaker) setStateLocked(s State) [2]State {
	from := cb.state
	cb.state = s
	cb.failureCount = 0
	cb.successCount = 0
	return [2]State{from, s}
}

func (cb *CircuitBreaker) notify(transitions [][2]State) {
	if cb.onStateChange == nil {
		return
	}
	for _, t := range transitions {
		cb.onStateChange(cb.component, t[0], t[1])
	}
}

// State returns the current state. An open breaker whose timeout has elapsed
// still reports open until the next call probes it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Component returns the name used in metrics and logs.
func (cb *CircuitBreaker) Component() string {
	return cb.component
}
