package status

import "slices"

// OrchestratorTransitions defines valid state transitions for an orchestrator
// Key is the current state, value is a list of valid next states
var OrchestratorTransitions = map[Orchestrator][]Orchestrator{
	Idle:       {Validating, Committing},       // committing directly for undo
	Validating: {Retrieving, Cancelling, Idle}, // invalid input returns to idle
	Retrieving: {Sorting, Cancelling, Idle},    // idle for warm-up runs and structural aborts
	Sorting:    {Committing, Idle},             // idle when sorting fails
	Committing: {Idle},
	Cancelling: {Idle},
}

// CanTransition checks if an orchestrator state transition is valid
func CanTransition(from, to Orchestrator) bool {
	allowed, ok := OrchestratorTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}
