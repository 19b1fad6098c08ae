package poller

import "testing"

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "idle to running", from: StateIdle, to: StateRunning, expected: true},
		{name: "running to stopping", from: StateRunning, to: StateStopping, expected: true},
		{name: "running straight to stopped", from: StateRunning, to: StateStopped, expected: true},
		{name: "stopping to stopped", from: StateStopping, to: StateStopped, expected: true},
		{name: "idle to stopping invalid", from: StateIdle, to: StateStopping, expected: false},
		{name: "stopped to running invalid", from: StateStopped, to: StateRunning, expected: false},
		{name: "stopping back to running invalid", from: StateStopping, to: StateRunning, expected: false},
		{name: "stopped is terminal", from: StateStopped, to: StateStopped, expected: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsTransitionAllowed(tc.from, tc.to); actual != tc.expected {
				t.Errorf("IsTransitionAllowed(%s -> %s) = %t, expected %t", tc.from, tc.to, actual, tc.expected)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateIdle:     "idle",
		StateRunning:  "running",
		StateStopping: "stopping",
		StateStopped:  "stopped",
		State(99):     "unknown",
	}

	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
