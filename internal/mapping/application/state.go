package application

// State is the lifecycle position of a mapping session.
type State string

const (
	StateIdle                State = "idle"
	StateHydrating           State = "hydrating"
	StateEmpty               State = "empty"
	StateHydrated            State = "hydrated"
	StateSuggestionRequested State = "suggestion_requested"
	StateMerged              State = "merged"
	StateEditing             State = "editing"
	StateSubmitting          State = "submitting"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

func (s State) String() string {
	return string(s)
}

// editable reports whether row commands are accepted in this state.
func (s State) editable() bool {
	switch s {
	case StateEmpty, StateHydrated, StateSuggestionRequested, StateMerged, StateEditing, StateDone:
		return true
	default:
		return false
	}
}
