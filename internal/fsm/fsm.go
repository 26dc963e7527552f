package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateListening State = "listening"
	StateStopping  State = "stopping"
)

const (
	EventStart   Event = "start"
	EventStarted Event = "started"
	EventStop    Event = "stop"
	EventResume  Event = "resume"
	EventRestart Event = "restart"
	EventEnded   Event = "ended"
	EventFail    Event = "fail"
	EventClose   Event = "close"
)

// Transition returns the next session state. Fail and close settle every
// state to idle.
func Transition(current State, event Event) (State, error) {
	if event == EventFail || event == EventClose {
		switch current {
		case StateIdle, StateStarting, StateListening, StateStopping:
			return StateIdle, nil
		default:
			return current, fmt.Errorf("unknown state %q", current)
		}
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateStarting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStarting:
		switch event {
		case EventStarted:
			return StateListening, nil
		case EventStop:
			return StateStopping, nil
		case EventRestart:
			return StateStarting, nil
		case EventEnded:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventStop:
			return StateStopping, nil
		case EventRestart:
			return StateStarting, nil
		case EventEnded:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopping:
		switch event {
		case EventStarted, EventStop:
			return StateStopping, nil
		case EventResume:
			return StateStarting, nil
		case EventEnded:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Active reports whether an engine handle may be live in state s.
func Active(s State) bool {
	return s == StateStarting || s == StateListening || s == StateStopping
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
