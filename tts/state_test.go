package tts

import "testing"

// TestStateTypeString tests the String() method for StateType.
func TestStateTypeString(t *testing.T) {
	tests := []struct {
		state    StateType
		expected string
	}{
		{StateIdle, "idle"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{StateSeeking, "seeking"},
		{StateFinished, "finished"},
		{StateStopped, "stopped"},
		{StateType(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.state.String()
			if result != tt.expected {
				t.Errorf("StateType.String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

// TestStateMachineTransitions tests valid and invalid transitions.
func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []StateType
		valid bool
	}{
		{"idle to playing", []StateType{StatePlaying}, true},
		{"pause and resume", []StateType{StatePlaying, StatePaused, StatePlaying}, true},
		{"seek while playing", []StateType{StatePlaying, StateSeeking, StatePlaying}, true},
		{"seek while paused", []StateType{StatePlaying, StatePaused, StateSeeking, StatePaused}, true},
		{"replay after finish", []StateType{StatePlaying, StateFinished, StateSeeking, StatePlaying}, true},
		{"idle cannot pause", []StateType{StatePaused}, false},
		{"idle cannot seek", []StateType{StateSeeking}, false},
		{"seeking cannot finish", []StateType{StatePlaying, StateSeeking, StateFinished}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			ok := true
			for _, to := range tt.path {
				if !sm.Transition(to) {
					ok = false
					break
				}
			}
			if ok != tt.valid {
				t.Errorf("path %v valid = %v, want %v (stuck in %v)", tt.path, ok, tt.valid, sm.Current())
			}
		})
	}
}

// TestStateMachineOnChange tests that checked and forced changes both
// reach the callback, and no-op changes do not.
func TestStateMachineOnChange(t *testing.T) {
	sm := NewStateMachine()

	var changes []string
	sm.OnChange(func(from, to StateType) {
		changes = append(changes, from.String()+">"+to.String())
	})

	sm.Transition(StatePlaying)
	sm.Transition(StatePaused)
	if sm.Transition(StateFinished) {
		t.Fatal("paused > finished should be rejected")
	}
	sm.Force(StateStopped)
	sm.Force(StateStopped)

	want := []string{"idle>playing", "playing>paused", "paused>stopped"}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("change %d = %s, want %s", i, changes[i], want[i])
		}
	}
}
