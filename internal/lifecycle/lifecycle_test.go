package lifecycle

import "testing"

func TestDrainFlag_Transitions(t *testing.T) {
	t.Cleanup(func() { SetShuttingDown(false) })

	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true before any signal, want false")
	}

	SetShuttingDown(true)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown(true), want true")
	}

	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after clearing, want false")
	}
}
