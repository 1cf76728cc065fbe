package enhance

// State is the phase a run is in.
type State int

const (
	StateIdle State = iota
	StateExpanding
	StateResolving
	StateTransforming
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExpanding:
		return "expanding"
	case StateResolving:
		return "resolving"
	case StateTransforming:
		return "transforming"
	case StateCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

// StateHook observes state transitions of a run.
type StateHook func(runID string, from, to State)
