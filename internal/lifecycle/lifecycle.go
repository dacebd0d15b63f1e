// Package lifecycle tracks the process phase for the health endpoint.
package lifecycle

import "sync/atomic"

// Phase is the process phase.
type Phase int32

const (
	// PhaseStarting lasts until the first poll cycle completes.
	PhaseStarting Phase = iota
	PhaseRunning
	// PhaseShuttingDown is entered on SIGTERM/SIGINT and never left.
	PhaseShuttingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// Current returns the current phase.
func Current() Phase {
	return Phase(phase.Load())
}

// MarkRunning moves from starting to running. It does nothing once shutdown began.
func MarkRunning() {
	phase.CompareAndSwap(int32(PhaseStarting), int32(PhaseRunning))
}

// SetShuttingDown marks the process as draining. Health returns 503 while true.
func SetShuttingDown() {
	phase.Store(int32(PhaseShuttingDown))
}

// IsShuttingDown reports whether shutdown has begun.
func IsShuttingDown() bool {
	return Current() == PhaseShuttingDown
}

// reset returns to the starting phase. For tests only.
func reset() {
	phase.Store(int32(PhaseStarting))
}
