package transport

import "sync/atomic"

// State enumerates the transport session lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

var transitions = map[State][]State{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateDisconnected, StateLoggedOut},
	StateConnected:    {StateDisconnected, StateLoggedOut},
	StateLoggedOut:    {},
}

// Tracker is an atomically-updated connectivity cell. Adapter event
// callbacks drive transitions; the dispatch worker and listener only
// ever read the current state, never the transition logic. logged_out
// is terminal; re-authentication requires a new session.
type Tracker struct {
	state atomic.Int32
}

// NewTracker starts in the disconnected state.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Current returns the state with acquire semantics.
func (t *Tracker) Current() State {
	return State(t.state.Load())
}

// Connected reports whether sends can be attempted.
func (t *Tracker) Connected() bool {
	return t.Current() == StateConnected
}

// Transition moves to the target state if legal from the current one,
// reporting whether the move happened. Illegal transitions leave the
// state untouched.
func (t *Tracker) Transition(to State) bool {
	for {
		current := t.Current()
		if !legal(current, to) {
			return false
		}
		if t.state.CompareAndSwap(int32(current), int32(to)) {
			return true
		}
	}
}

func legal(from, to State) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
