// Package dragdrop implements the planner's two drag protocols: reordering
// driver rows and reassigning draft truckloads to another driver.
package dragdrop

// State is the phase of a drag gesture.
type State string

const (
	StateIdle      State = "idle"
	StateDragging  State = "dragging"
	StateDropped   State = "dropped"
	StateCancelled State = "cancelled"
)

// FSM holds the allowed gesture transitions.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates the gesture state machine.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:      {StateDragging},
			StateDragging:  {StateDropped, StateCancelled},
			StateDropped:   {StateIdle},
			StateCancelled: {StateIdle},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	allowed, ok := f.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
