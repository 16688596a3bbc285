package domain

// State is the lifecycle position of one CO/EE domain pair.
type State string

const (
	StateUnbuilt  State = "unbuilt"
	StateBuilt    State = "built"
	StateStitched State = "stitched"
	StateRunning  State = "running"
	StateStopped  State = "stopped"
)

// States lists every lifecycle state in order.
var States = []State{StateUnbuilt, StateBuilt, StateStitched, StateRunning, StateStopped}

// next maps each state to the only state it may advance to.
var next = map[State]State{
	StateUnbuilt:  StateBuilt,
	StateBuilt:    StateStitched,
	StateStitched: StateRunning,
	StateRunning:  StateStopped,
}

// CanTransition reports whether a domain in state s may move to target.
func (s State) CanTransition(target State) bool {
	n, ok := next[s]
	return ok && n == target
}
