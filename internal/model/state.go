package model

// Identifier lifecycle states within one orchestration run.
const (
	StatePending       = "pending"
	StateMaterializing = "materializing"
	StateExecuting     = "executing"
	StateSucceeded     = "succeeded"
	StateTimedOut      = "timed_out"
	StateFailed        = "failed"
	StateRecorded      = "recorded"
)

// validTransitions maps each state to the set of states it may move to.
// StateRecorded has no entry: it is terminal.
var validTransitions = map[string]map[string]bool{
	StatePending: {
		StateMaterializing: true,
	},
	StateMaterializing: {
		StateExecuting: true,
	},
	StateExecuting: {
		StateSucceeded: true,
		StateTimedOut:  true,
		StateFailed:    true,
	},
	StateSucceeded: {StateRecorded: true},
	StateTimedOut:  {StateRecorded: true},
	StateFailed:    {StateRecorded: true},
}

// ValidTransition reports whether moving from one state to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// StateFor maps a result to the state an identifier enters after execution.
func StateFor(r Result) string {
	switch r.(type) {
	case Success:
		return StateSucceeded
	case Timeout:
		return StateTimedOut
	case Failure:
		return StateFailed
	default:
		return ""
	}
}
