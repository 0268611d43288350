package util

// StateTransitions maps states to their set of valid next states
//
// Generic state transition tables are used to validate status changes on
// executions and tasks
type StateTransitions[T comparable] map[T]Set[T]

// CanTransition returns whether transition from one state to another is valid
func (t StateTransitions[T]) CanTransition(from, to T) bool {
	allowed, ok := t[from]
	if !ok {
		return false
	}
	return allowed.Contains(to)
}

// IsTerminal returns true if the state has no valid transitions
func (t StateTransitions[T]) IsTerminal(state T) bool {
	allowed, ok := t[state]
	return ok && allowed.IsEmpty()
}
