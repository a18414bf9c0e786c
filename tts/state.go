package tts

// StateType represents the current playback state.
type StateType int

const (
	// StateIdle indicates no run has started.
	StateIdle StateType = iota
	// StatePlaying indicates the device clock is running with audio scheduled.
	StatePlaying
	// StatePaused indicates the device clock is suspended.
	StatePaused
	// StateSeeking is held only while a seek reschedules buffered audio.
	StateSeeking
	// StateFinished indicates playback reached the end of all generated audio.
	StateFinished
	// StateStopped indicates playback was stopped by the user or a device error.
	StateStopped
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateSeeking:
		return "seeking"
	case StateFinished:
		return "finished"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StateMachine manages playback state transitions.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
	onChange    func(from, to StateType)
}

// NewStateMachine creates a new state machine with valid transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:     {StatePlaying, StateStopped},
			StatePlaying:  {StatePaused, StateSeeking, StateFinished, StateStopped},
			StatePaused:   {StatePlaying, StateSeeking, StateStopped},
			StateSeeking:  {StatePlaying, StatePaused},
			StateFinished: {StateSeeking, StateStopped, StatePlaying},
			StateStopped:  {StateSeeking, StatePlaying, StateIdle},
		},
	}
}

// Transition attempts to transition to the specified state.
func (sm *StateMachine) Transition(to StateType) bool {
	if !sm.CanTransition(to) {
		return false
	}

	sm.set(to)
	return true
}

// CanTransition reports whether moving to the given state is allowed.
func (sm *StateMachine) CanTransition(to StateType) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Force moves to a state without checking transitions. It is used when a new
// run starts or a device failure forces a safe stop.
func (sm *StateMachine) Force(to StateType) {
	if sm.current == to {
		return
	}
	sm.set(to)
}

func (sm *StateMachine) set(to StateType) {
	from := sm.current
	sm.current = to
	if sm.onChange != nil {
		sm.onChange(from, to)
	}
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}

// OnChange registers a callback run after every state change, forced or not.
func (sm *StateMachine) OnChange(fn func(from, to StateType)) {
	sm.onChange = fn
}
