package status

// Orchestrator represents the state of a queue orchestrator
// @enum idle,validating,retrieving,sorting,committing,cancelling
type Orchestrator string

const (
	Idle       Orchestrator = "idle"       // ready for a new invocation
	Validating Orchestrator = "validating" // reading items and checking input
	Retrieving Orchestrator = "retrieving" // backfill and remote fetches
	Sorting    Orchestrator = "sorting"    // computing the new order
	Committing Orchestrator = "committing" // writing priorities to the sink
	Cancelling Orchestrator = "cancelling" // unwinding a cancelled retrieval
)

// AllOrchestratorStates returns all valid orchestrator states
func AllOrchestratorStates() []Orchestrator {
	return []Orchestrator{Idle, Validating, Retrieving, Sorting, Committing, Cancelling}
}

// IsBusy returns true while an invocation is in flight
func (o Orchestrator) IsBusy() bool {
	return o != Idle
}

// IsCancellable returns true only during retrieval; once sorting starts the
// operation completes or fails as a whole
func (o Orchestrator) IsCancellable() bool {
	return o == Validating || o == Retrieving
}
