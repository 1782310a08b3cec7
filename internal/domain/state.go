package domain

// AttemptState is the position of a (candidate, test) pair in the attempt lifecycle.
type AttemptState int

const (
	StateNotStarted AttemptState = iota
	StateStarted
	StateCompleted
)

func (s AttemptState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarted:
		return "started"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

type AttemptEvent string

const (
	EventStart  AttemptEvent = "start"
	EventSubmit AttemptEvent = "submit"
)

// Transition is a named edge of the attempt state machine.
type Transition struct {
	Name string
	From AttemptState
	To   AttemptState
}

var (
	TransitionStart  = Transition{Name: "start", From: StateNotStarted, To: StateStarted}
	TransitionResume = Transition{Name: "resume", From: StateStarted, To: StateStarted}
	TransitionSubmit = Transition{Name: "submit", From: StateStarted, To: StateCompleted}
	// TransitionDirectSubmit covers a submit that was never preceded by a start.
	TransitionDirectSubmit = Transition{Name: "direct-submit", From: StateNotStarted, To: StateCompleted}
)

var transitions = map[AttemptState]map[AttemptEvent]Transition{
	StateNotStarted: {
		EventStart:  TransitionStart,
		EventSubmit: TransitionDirectSubmit,
	},
	StateStarted: {
		EventStart:  TransitionResume,
		EventSubmit: TransitionSubmit,
	},
}

// NextTransition resolves the edge taken from state on event. Completed is terminal.
func NextTransition(from AttemptState, event AttemptEvent) (Transition, error) {
	if from == StateCompleted {
		return Transition{}, ErrAttemptCompleted
	}
	t, ok := transitions[from][event]
	if !ok {
		return Transition{}, NewError(KindBadRequest, "unsupported attempt event "+string(event))
	}
	return t, nil
}
