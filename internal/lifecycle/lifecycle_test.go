package lifecycle

import "testing"

func TestPhase_DefaultStarting(t *testing.T) {
	reset()
	if got := Current(); got != PhaseStarting {
		t.Errorf("Current() = %v, want starting", got)
	}
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true, want false by default")
	}
}

func TestMarkRunning(t *testing.T) {
	reset()
	MarkRunning()
	if got := Current(); got != PhaseRunning {
		t.Errorf("Current() = %v, want running", got)
	}
}

func TestSetShuttingDown_IsTerminal(t *testing.T) {
	reset()
	defer reset()
	SetShuttingDown()
	MarkRunning()
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown, want true")
	}
	if got := Current().String(); got != "shutting-down" {
		t.Errorf("Current().String() = %q, want shutting-down", got)
	}
}
