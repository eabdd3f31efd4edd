package agent

import "testing"

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateCreated, false},
		{StateStarted, false},
		{StateStopping, false},
		{StateStopped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State(%q).IsTerminal() = %v, want %v", tt.state, got, tt.expected)
			}
		})
	}
}

func TestState_IsRunning(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateCreated, false},
		{StateStarted, true},
		{StateStopping, true},
		{StateStopped, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsRunning(); got != tt.expected {
				t.Errorf("State(%q).IsRunning() = %v, want %v", tt.state, got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	for _, s := range AllStates() {
		if !s.IsValid() {
			t.Errorf("State(%q).IsValid() = false, want true", s)
		}
	}
	if State("paused").IsValid() {
		t.Error("State(paused).IsValid() = true, want false")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateCreated, StateStarted, true},
		{StateStarted, StateStopping, true},
		{StateStopping, StateStopped, true},
		{StateCreated, StateStopped, false},
		{StateStarted, StateCreated, false},
		{StateStopped, StateStarted, false},
		{StateStopped, StateCreated, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
